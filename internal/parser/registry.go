package parser

import (
	"fmt"
	"strings"
)

// Registry holds all available decoders and provides auto-detection.
type Registry struct {
	decoders []Decoder
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		decoders: []Decoder{
			NewMsgpackDecoder(),
			NewJSONDecoder(),
			NewCSVDecoder(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new decoder to the registry.
func (r *Registry) Register(d Decoder) {
	r.decoders = append(r.decoders, d)
}

// FindDecoder detects the correct decoder for a file.
func (r *Registry) FindDecoder(name string, head []byte) (Decoder, error) {
	for _, d := range r.decoders {
		if d.CanDecode(name, head) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no suitable decoder found for file: %s", name)
}

// GetDecoderByName returns a decoder by its name.
func (r *Registry) GetDecoderByName(name string) (Decoder, error) {
	name = strings.ToLower(name)
	for _, d := range r.decoders {
		if strings.ToLower(d.Name()) == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("decoder not found: %s", name)
}

// Names lists registered decoder names in detection order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.decoders))
	for i, d := range r.decoders {
		out[i] = d.Name()
	}
	return out
}
