package ir

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capabilities is a set of optional features a module may be allowed to use.
// It is a plain value: copying it never aliases state.
type Capabilities uint32

const (
	CapabilityPushConstant Capabilities = 1 << iota
	CapabilityFloat64
	CapabilityPrimitiveIndex
	CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing
	CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing
	CapabilitySamplerNonUniformIndexing
	CapabilityClipDistance
	CapabilityCullDistance
	CapabilityStorageTexture16BitNormFormats
	CapabilityShaderInt64
	CapabilitySampleVariables
	CapabilityMultiview

	// CapabilitiesNone is the empty set.
	CapabilitiesNone Capabilities = 0

	// CapabilitiesAll holds every known feature.
	CapabilitiesAll = CapabilityMultiview<<1 - 1
)

var capabilityNames = []struct {
	flag Capabilities
	name string
}{
	{CapabilityPushConstant, "PUSH_CONSTANT"},
	{CapabilityFloat64, "FLOAT64"},
	{CapabilityPrimitiveIndex, "PRIMITIVE_INDEX"},
	{CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing, "SAMPLED_TEXTURE_AND_STORAGE_BUFFER_ARRAY_NON_UNIFORM_INDEXING"},
	{CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing, "UNIFORM_BUFFER_AND_STORAGE_TEXTURE_ARRAY_NON_UNIFORM_INDEXING"},
	{CapabilitySamplerNonUniformIndexing, "SAMPLER_NON_UNIFORM_INDEXING"},
	{CapabilityClipDistance, "CLIP_DISTANCE"},
	{CapabilityCullDistance, "CULL_DISTANCE"},
	{CapabilityStorageTexture16BitNormFormats, "STORAGE_TEXTURE_16BIT_NORM_FORMATS"},
	{CapabilityShaderInt64, "SHADER_INT64"},
	{CapabilitySampleVariables, "SAMPLE_VARIABLES"},
	{CapabilityMultiview, "MULTIVIEW"},
}

// Contains reports whether every feature of other is in c.
func (c Capabilities) Contains(other Capabilities) bool {
	return c&other == other
}

// With returns c extended by other.
func (c Capabilities) With(other Capabilities) Capabilities {
	return c | other
}

// Len returns the number of features in the set.
func (c Capabilities) Len() int {
	return bits.OnesCount32(uint32(c))
}

// Names lists the feature names in declaration order.
func (c Capabilities) Names() []string {
	names := make([]string, 0, c.Len())
	rest := c
	for _, entry := range capabilityNames {
		if c&entry.flag != 0 {
			names = append(names, entry.name)
			rest &^= entry.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return names
}

func (c Capabilities) String() string {
	if c == 0 {
		return "NONE"
	}
	return strings.Join(c.Names(), " | ")
}

// ParseCapabilities parses feature names separated by '|', ',' or spaces.
// Names are case-insensitive; NONE and the empty string yield the empty set.
func ParseCapabilities(s string) (Capabilities, error) {
	var caps Capabilities
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '\t'
	})
	for _, field := range fields {
		name := strings.ToUpper(field)
		if name == "NONE" {
			continue
		}
		flag, ok := capabilityByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", field)
		}
		caps |= flag
	}
	return caps, nil
}

func capabilityByName(name string) (Capabilities, bool) {
	for _, entry := range capabilityNames {
		if entry.name == name {
			return entry.flag, true
		}
	}
	return 0, false
}
