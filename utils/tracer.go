package utils

import (
	. "github.com/BagetTeam/ReeLearners/utils/flag"
	Logger "github.com/BagetTeam/ReeLearners/utils/log"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// StartTracer starts the Datadog tracer for the current service.
func StartTracer() {
	env := "development"
	if !IsDevelopment {
		env = "production"
	}

	tracer.Start(
		tracer.WithService(ServiceName),
		tracer.WithEnv(env),
	)

	Logger.Log.Info("tracer initialized")
}

// Stop tracer, OK to be closed multiple times
func CloseTracer() {
	tracer.Stop()
}
