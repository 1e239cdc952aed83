package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity fetches the caller's identity token in the http header, looking
// for field "token". Verification happens upstream at the gateway, so here
// the token body is taken as the caller's id and moved into a new field
// "sub", mirroring what a full verifier would emit. Requests without a token
// are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"msg": "empty identity token",
			})
			c.Abort()
			return
		}

		c.Request.Header.Del("token")
		c.Request.Header.Add("sub", token)

		c.Next()
	}
}
