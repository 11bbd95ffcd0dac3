// Package msl implements Metal Shading Language (MSL) code generation.
//
// MSL is Apple's shader language for the Metal graphics API. It is based on C++14
// with extensions for GPU programming, including explicit address spaces, attribute-based
// parameter binding, and a metal:: namespace for standard library functions.
//
// # Usage
//
// Compile takes a module together with the info its validation produced:
//
//	module, err := glsl.Parse(source, glsl.Options{Stage: ir.StageFragment})
//	if err != nil {
//	    return err
//	}
//	info, err := ir.Validate(module, ir.CapabilityPushConstant|ir.CapabilityClipDistance)
//	if err != nil {
//	    return err
//	}
//	code, _, err := msl.Compile(module, info, msl.DefaultOptions(), msl.PipelineOptions{})
//
// Info produced for a different module is rejected.
//
// # Type Mapping
//
//	IR                 MSL
//	--                 ---
//	bool               bool
//	i32 / u32 / f32    int / uint / float
//	vecN<T>            metal::TN
//	matCxR<f32>        metal::floatCxR
//	array<T, N>        struct type_K { T inner[N]; }
//	runtime array      T name[1] (indexed past the end)
//	sampled image      metal::texture2d<float, metal::access::sample> plus name_smplr
//	depth image        metal::depth2d<float, metal::access::sample>
//	sampler            metal::sampler
//
// Struct members are padded with char arrays so they land on their declared
// std140/std430 offsets. A vec3 followed by a member inside its 16 bytes is
// written as a packed vector.
//
// # Address Spaces
//
//	uniform, push constant  -> constant
//	storage                 -> device (const device when read-only)
//	private, in, out        -> thread
//	workgroup               -> threadgroup
//	function                -> thread (stack)
//
// # Entry Points
//
// Every function is written as an ordinary function that receives the
// globals it touches as reference parameters. Each entry point then gets a
// vertex, fragment or kernel function which declares the stage interface
// with [[stage_in]], [[position]], [[color(N)]] and friends, binds resources
// to [[buffer(N)]], [[texture(N)]] and [[sampler(N)]] slots, calls the
// function and packs the outputs.
//
// # Helper Functions
//
// Integer division and remainder go through _xs_div and _xs_mod so a zero
// divisor does not produce undefined behavior. Runtime array lengths are
// read from a _mslBufferSizes struct bound to the sizes buffer.
package msl
