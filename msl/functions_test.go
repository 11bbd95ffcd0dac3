package msl

import (
	"errors"
	"testing"

	"github.com/gogpu/xshader/ir"
)

const sharedMemoryCompute = `#version 450
layout(local_size_x = 64) in;
shared float tile[64];

void main() {
    tile[gl_LocalInvocationIndex] = 1.0;
    barrier();
}
`

func TestWorkgroupZeroInitialization(t *testing.T) {
	code := mustCompile(t, ir.StageCompute, sharedMemoryCompute)
	expectContains(t, code,
		"kernel void main_(",
		"threadgroup ",
		"metal::uint3 __local_invocation_id [[thread_position_in_threadgroup]]",
		"if (metal::all(__local_invocation_id == metal::uint3(0u))) {",
		"tile = {};",
		"uint gl_LocalInvocationIndex [[thread_index_in_threadgroup]]",
	)
}

func TestWorkgroupZeroInitializationDisabled(t *testing.T) {
	options := DefaultOptions()
	options.ZeroInitializeWorkgroupMemory = false

	code, err := compileWith(t, ir.StageCompute, sharedMemoryCompute, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "threadgroup ")
	expectNotContains(t, code, "__local_invocation_id", "tile = {};")
}

func TestWorkgroupZeroInitializationReusesLocalID(t *testing.T) {
	source := `#version 450
layout(local_size_x = 8, local_size_y = 8) in;
shared vec4 cache;

void main() {
    if (gl_LocalInvocationID.x == 1u) {
        cache = vec4(1.0);
    }
}
`
	code := mustCompile(t, ir.StageCompute, source)
	expectContains(t, code,
		"metal::uint3 gl_LocalInvocationID [[thread_position_in_threadgroup]]",
		"if (metal::all(gl_LocalInvocationID == metal::uint3(0u))) {",
	)
	expectNotContains(t, code, "__local_invocation_id")
}

func TestRuntimeArrayLength(t *testing.T) {
	source := `#version 450
layout(local_size_x = 64) in;
layout(set = 0, binding = 0) buffer Data {
    float values[];
} data;

void main() {
    uint i = gl_GlobalInvocationID.x;
    if (int(i) < data.values.length()) {
        data.values[i] = data.values[i] * 2.0;
    }
}
`
	code := mustCompile(t, ir.StageCompute, source)
	expectContains(t, code,
		"struct _mslBufferSizes {",
		"uint size",
		"_buffer_sizes.size",
		"device Data& data [[buffer(0)]]",
		"constant _mslBufferSizes& _buffer_sizes [[buffer(1)]]",
		"metal::uint3 gl_GlobalInvocationID [[thread_position_in_grid]]",
	)
}

func TestRuntimeArrayLengthMappedSizesBuffer(t *testing.T) {
	source := `#version 450
layout(local_size_x = 64) in;
layout(set = 0, binding = 0) readonly buffer Data {
    float values[];
} data;
layout(set = 0, binding = 1) buffer Out {
    int count;
} result;

void main() {
    result.count = data.values.length();
}
`
	options := DefaultOptions()
	options.PerEntryPointMap = map[string]EntryPointResources{
		"main": {
			Resources: map[ir.ResourceBinding]BindTarget{
				{Group: 0, Binding: 0}: {Buffer: ptr[uint8](3)},
				{Group: 0, Binding: 1}: {Buffer: ptr[uint8](4)},
			},
			SizesBuffer: ptr[uint8](7),
		},
	}

	code, err := compileWith(t, ir.StageCompute, source, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code,
		"const device Data& data [[buffer(3)]]",
		"device Out& result [[buffer(4)]]",
		"constant _mslBufferSizes& _buffer_sizes [[buffer(7)]]",
	)
}

func TestRuntimeArrayLengthWithoutSizesBuffer(t *testing.T) {
	source := `#version 450
layout(local_size_x = 64) in;
layout(set = 0, binding = 0) buffer Data {
    float values[];
} data;

void main() {
    data.values[0] = float(data.values.length());
}
`
	options := DefaultOptions()
	options.PerEntryPointMap = map[string]EntryPointResources{
		"main": {
			Resources: map[ir.ResourceBinding]BindTarget{
				{Group: 0, Binding: 0}: {Buffer: ptr[uint8](0)},
			},
		},
	}

	_, err := compileWith(t, ir.StageCompute, source, options, PipelineOptions{})
	var unsupportedErr *UnsupportedConstructError
	if !errors.As(err, &unsupportedErr) {
		t.Fatalf("err = %v, want an UnsupportedConstructError", err)
	}
}

func TestInterpolationQualifiers(t *testing.T) {
	source := `#version 450
layout(location = 0) flat in int id;
layout(location = 1) noperspective in float fade;
layout(location = 2) centroid in vec2 uv;
layout(location = 0) out vec4 color;

void main() {
    color = vec4(float(id), fade, uv);
}
`
	code := mustCompile(t, ir.StageFragment, source)
	expectContains(t, code,
		"int id [[user(locn0), flat]];",
		"float fade [[user(locn1), center_no_perspective]];",
		"metal::float2 uv [[user(locn2), centroid_perspective]];",
		"varyings [[stage_in]]",
		"int id = varyings.id;",
	)
}

func TestInterpolationAttribute(t *testing.T) {
	tests := []struct {
		interp *ir.Interpolation
		want   string
	}{
		{nil, ""},
		{&ir.Interpolation{Kind: ir.InterpolationPerspective, Sampling: ir.SamplingCenter}, ""},
		{&ir.Interpolation{Kind: ir.InterpolationFlat}, ", flat"},
		{&ir.Interpolation{Kind: ir.InterpolationPerspective, Sampling: ir.SamplingCentroid}, ", centroid_perspective"},
		{&ir.Interpolation{Kind: ir.InterpolationPerspective, Sampling: ir.SamplingSample}, ", sample_perspective"},
		{&ir.Interpolation{Kind: ir.InterpolationLinear, Sampling: ir.SamplingCenter}, ", center_no_perspective"},
	}
	for _, tt := range tests {
		if got := interpolationAttribute(tt.interp); got != tt.want {
			t.Errorf("interpolationAttribute(%+v) = %q, want %q", tt.interp, got, tt.want)
		}
	}
}

func TestVertexBuiltins(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec2 uv;

void main() {
    uv = vec2(float(gl_VertexIndex), float(gl_InstanceIndex));
    gl_Position = vec4(uv, 0.0, 1.0);
    gl_PointSize = 2.0;
}
`
	code := mustCompile(t, ir.StageVertex, source)
	expectContains(t, code,
		"[[vertex_id]]",
		"[[instance_id]]",
		"metal::float4 gl_Position [[position]];",
		"float gl_PointSize [[point_size]];",
		"metal::float2 uv [[user(locn0)]];",
	)
	expectNotContains(t, code, "_point_size")
}
