package pipeline

import "github.com/gogpu/xshader/ir"

// defaultCapabilities is the fixed validation profile of a run.
const defaultCapabilities = ir.CapabilityPushConstant |
	ir.CapabilityFloat64 |
	ir.CapabilityPrimitiveIndex |
	ir.CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing |
	ir.CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing |
	ir.CapabilitySamplerNonUniformIndexing |
	ir.CapabilityClipDistance |
	ir.CapabilityCullDistance |
	ir.CapabilityStorageTexture16BitNormFormats

// DefaultCapabilities returns the profile every unit is validated against
// unless the caller supplies its own. 64-bit integers, sample variables and
// multiview stay disabled.
func DefaultCapabilities() ir.Capabilities {
	return defaultCapabilities
}
