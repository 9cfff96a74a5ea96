package mediagraph

import "context"

// nullSink discards every frame.
type nullSink struct{}

func (nullSink) WriteFrame(context.Context, *Frame) error { return nil }

func init() {
	registerBuiltin(KindConsumer, "null", func(bc *BuildContext) (Service, error) {
		return NewConsumer(bc.Profile, bc.ID, nullSink{}, bc.Logger), nil
	})
}
