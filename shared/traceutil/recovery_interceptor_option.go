package traceutil

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

// RecoveryHandlerFunc recovers from the panic p by returning an error,
// after annotating the active trace span (if any) and logging the
// stack. The context can be used to extract request scoped metadata
// and context values.
func RecoveryHandlerFunc(ctx context.Context, p interface{}) error {
	span := trace.FromContext(ctx)
	if span != nil {
		span.AddAttributes(trace.StringAttribute("stack", string(debug.Stack())))
	}
	err := fmt.Errorf("%v", p)
	logrus.WithError(err).WithField("stack", string(debug.Stack())).Error("recovered from panic")
	return err
}
