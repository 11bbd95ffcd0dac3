package msl

import (
	"testing"

	"github.com/gogpu/xshader/ir"
)

func TestExpressions(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   []string
		absent []string
	}{
		{
			name: "integer division and remainder",
			body: `int a = int(gl_FragCoord.x);
    color = vec4(float(a / 3), float(a % 4), 0.0, 1.0);`,
			want: []string{
				"T _xs_div(T lhs, D rhs) {",
				"T _xs_mod(T lhs, D rhs) {",
				"_xs_div(",
				"_xs_mod(",
			},
		},
		{
			name:   "float division stays an operator",
			body:   `color = vec4(gl_FragCoord.x / 2.0);`,
			want:   []string{" / 2.0)"},
			absent: []string{"_xs_div"},
		},
		{
			name: "glsl mod expands through floor",
			body: `color = vec4(mod(gl_FragCoord.x, 3.0));`,
			want: []string{"metal::floor("},
		},
		{
			name: "math functions",
			body: `vec3 v = gl_FragCoord.xyz;
    color = vec4(normalize(v) * inversesqrt(v.x), length(v.y));`,
			want: []string{"metal::normalize(", "metal::rsqrt(", "metal::abs("},
		},
		{
			name: "radians become a multiply",
			body: `color = vec4(radians(gl_FragCoord.x));`,
			want: []string{"* 0.017453292519943295474)"},
		},
		{
			name: "bit casts and conversions",
			body: `uint bits = floatBitsToUint(gl_FragCoord.x);
    color = vec4(float(bits), float(int(gl_FragCoord.y)), 0.0, 1.0);`,
			want: []string{"as_type<uint>(", "int(", "float("},
		},
		{
			name: "derivatives",
			body: `color = vec4(dFdx(gl_FragCoord.x), dFdyFine(gl_FragCoord.y), fwidth(gl_FragCoord.z), 1.0);`,
			want: []string{"metal::dfdx(", "metal::dfdy(", "metal::fwidth("},
		},
		{
			name: "swizzles",
			body: `color = gl_FragCoord.zyxw;`,
			want: []string{".zyxw"},
		},
		{
			name: "relational reductions",
			body: `if (any(lessThan(gl_FragCoord.xy, vec2(1.0)))) { color = vec4(1.0); }`,
			want: []string{"metal::any(", " < "},
		},
		{
			name: "bit counting",
			body: `uint u = uint(gl_FragCoord.x);
    color = vec4(float(bitCount(u)), float(findLSB(u)), float(bitfieldReverse(u)), 1.0);`,
			want: []string{"metal::popcount(", "metal::ctz(", "metal::reverse_bits("},
		},
		{
			name: "ternary on scalars",
			body: `color = gl_FragCoord.x > 1.0 ? vec4(1.0) : vec4(0.0);`,
			want: []string{" ? "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "#version 450\nlayout(location = 0) out vec4 color;\nvoid main() {\n    " + tt.body + "\n}\n"
			code := mustCompile(t, ir.StageFragment, source)
			expectContains(t, code, tt.want...)
			expectNotContains(t, code, tt.absent...)
		})
	}
}

func TestImageOperations(t *testing.T) {
	tests := []struct {
		name  string
		stage ir.ShaderStage
		decl  string
		body  string
		want  []string
	}{
		{
			name: "explicit level",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = textureLod(tex, vec2(0.5), 2.0);",
			want: []string{".sample(tex_smplr, ", "metal::level("},
		},
		{
			name: "gradients",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = textureGrad(tex, vec2(0.5), vec2(0.1), vec2(0.2));",
			want: []string{"metal::gradient2d("},
		},
		{
			name: "bias",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = texture(tex, vec2(0.5), 1.0);",
			want: []string{"metal::bias("},
		},
		{
			name: "gather",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = textureGather(tex, vec2(0.5), 1);",
			want: []string{".gather(tex_smplr, ", "metal::int2(0), metal::component::y)"},
		},
		{
			name: "depth comparison",
			decl: "layout(set = 0, binding = 0) uniform sampler2DShadow shadow;",
			body: "color = vec4(texture(shadow, vec3(0.5, 0.5, 0.25)));",
			want: []string{
				"metal::depth2d<float, metal::access::sample> shadow",
				".sample_compare(shadow_smplr, ",
			},
		},
		{
			name: "array layer",
			decl: "layout(set = 0, binding = 0) uniform sampler2DArray layers;",
			body: "color = texture(layers, vec3(0.5, 0.5, 2.0));",
			want: []string{"metal::texture2d_array<float, metal::access::sample> layers", ", uint("},
		},
		{
			name: "texel fetch",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = texelFetch(tex, ivec2(1, 2), 0);",
			want: []string{".read(metal::uint2(", ", uint("},
		},
		{
			name: "size query",
			decl: "layout(set = 0, binding = 0) uniform sampler2D tex;",
			body: "color = vec4(vec2(textureSize(tex, 0)), float(textureQueryLevels(tex)), 1.0);",
			want: []string{"metal::uint2(", ".get_width(uint(", ".get_height(uint(", ".get_num_mip_levels()"},
		},
		{
			name:  "storage image",
			stage: ir.StageCompute,
			decl:  "layout(local_size_x = 8, local_size_y = 8) in;\nlayout(set = 0, binding = 0, rgba8) uniform writeonly image2D dst;\nlayout(set = 0, binding = 1, rgba32f) uniform readonly image2D src;",
			body:  "ivec2 p = ivec2(gl_GlobalInvocationID.xy);\n    imageStore(dst, p, imageLoad(src, p));",
			want: []string{
				"metal::texture2d<float, metal::access::write> dst [[texture(0)]]",
				"metal::texture2d<float, metal::access::read> src [[texture(1)]]",
				"src.read(metal::uint2(",
				"dst.write(",
			},
		},
		{
			name:  "read-write storage image",
			stage: ir.StageCompute,
			decl:  "layout(local_size_x = 8, local_size_y = 8) in;\nlayout(set = 0, binding = 0, r32f) uniform image2D acc;",
			body:  "ivec2 p = ivec2(gl_GlobalInvocationID.xy);\n    imageStore(acc, p, imageLoad(acc, p) + vec4(1.0));",
			want: []string{
				"metal::texture2d<float, metal::access::read_write> acc [[texture(0)]]",
				"acc.read(metal::uint2(",
				"acc.write(",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := tt.stage
			var source string
			if stage == ir.StageCompute {
				source = "#version 450\n" + tt.decl + "\nvoid main() {\n    " + tt.body + "\n}\n"
			} else {
				stage = ir.StageFragment
				source = "#version 450\nlayout(location = 0) out vec4 color;\n" + tt.decl + "\nvoid main() {\n    " + tt.body + "\n}\n"
			}
			code := mustCompile(t, stage, source)
			expectContains(t, code, tt.want...)
		})
	}
}

func TestPackedVectorMembers(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
layout(set = 0, binding = 0) buffer Lights {
    vec3 direction;
    float intensity;
    vec4 tint;
} lights;

void main() {
    color = vec4(lights.direction * lights.intensity, 1.0) * lights.tint;
}
`
	code := mustCompile(t, ir.StageFragment, source)
	expectContains(t, code,
		"metal::packed_float3 direction;",
		"float intensity;",
		"metal::float3(lights.direction)",
		"device Lights& lights [[buffer(0)]]",
	)
}

func TestConstants(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
const vec3 tint = vec3(1.0, 0.5, 0.25);
const int count = -2147483647 - 1;

void main() {
    color = vec4(tint, float(count));
}
`
	code := mustCompile(t, ir.StageFragment, source)
	expectContains(t, code, "constant metal::float3 tint = ")
}
