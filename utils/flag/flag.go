/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
	"testing"
)

const (
	APIServer     = "api_server"
	FeedAssembler = "feed_assembler"
)

var (
	IsDevelopment bool
	ByPassAuth    bool
	ServiceName   string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.BoolVar(&ByPassAuth, "no_auth", true, "set to true to skip the identity middleware. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server' or 'feed_assembler'")
	// Parsing here would reject the -test.* flags that `go test` passes,
	// because they are not registered until the test framework starts. In
	// test binaries the flags keep their defaults set above.
	if !testing.Testing() {
		flag.Parse()
	}
}
