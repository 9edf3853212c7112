package main

import "fmt"

// outputType is a pflag.Value implementing the --output-type enum
// (spec.md §6: TTI, T42, StdOut, WebSocket).
type outputType string

const (
	outputTTI       outputType = "tti"
	outputT42       outputType = "t42"
	outputStdOut    outputType = "stdout"
	outputWebSocket outputType = "websocket"
)

func (o *outputType) String() string {
	if *o == "" {
		return string(outputT42)
	}
	return string(*o)
}

func (o *outputType) Set(value string) error {
	switch outputType(value) {
	case outputTTI, outputT42, outputStdOut, outputWebSocket:
		*o = outputType(value)
		return nil
	default:
		return fmt.Errorf("unknown output type %q (want one of tti, t42, stdout, websocket)", value)
	}
}

func (o *outputType) Type() string {
	return "outputType"
}
