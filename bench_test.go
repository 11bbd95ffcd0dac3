package xshader

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/pipeline"
)

// shaderMediumFragment has helper functions, loops and branches.
const shaderMediumFragment = `#version 450
layout(location = 0) in vec3 normal;
layout(location = 1) in vec2 uv;
layout(location = 0) out vec4 color;

uniform sampler2D albedo;

float lambert(vec3 n, vec3 l) {
    return max(dot(normalize(n), normalize(l)), 0.0);
}

void main() {
    vec3 light = vec3(0.3, 0.8, 0.5);
    float shade = 0.0;
    for (int i = 0; i < 4; i++) {
        shade += lambert(normal, light * float(i + 1)) * 0.25;
    }
    vec4 base = texture(albedo, uv);
    if (base.a < 0.1) {
        discard;
    }
    color = vec4(base.rgb * shade, base.a);
}
`

var shadersByComplexity = []struct {
	name   string
	stage  ir.ShaderStage
	source string
}{
	{"VertexSmall", ir.StageVertex, triangleVertex},
	{"FragmentSmall", ir.StageFragment, texturedFragment},
	{"FragmentMedium", ir.StageFragment, shaderMediumFragment},
	{"ComputeSmall", ir.StageCompute, blurCompute},
}

// BenchmarkTranslate benchmarks the complete pipeline from GLSL source to
// MSL and reflection.
func BenchmarkTranslate(b *testing.B) {
	for _, sc := range shadersByComplexity {
		b.Run(sc.name, func(b *testing.B) {
			source := []byte(sc.source)
			opts := DefaultOptions(sc.stage)
			b.ReportAllocs()
			b.SetBytes(int64(len(source)))
			b.ResetTimer()

			var result *Result
			for i := 0; i < b.N; i++ {
				var err error
				result, err = Translate(source, opts)
				if err != nil {
					b.Fatalf("translate failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}

// BenchmarkParse benchmarks preprocessing, parsing and lowering to IR.
func BenchmarkParse(b *testing.B) {
	for _, sc := range shadersByComplexity {
		b.Run(sc.name, func(b *testing.B) {
			source := []byte(sc.source)
			b.ReportAllocs()
			b.SetBytes(int64(len(source)))
			b.ResetTimer()

			var module *ir.Module
			for i := 0; i < b.N; i++ {
				var err error
				module, err = Parse(source, sc.stage, nil)
				if err != nil {
					b.Fatalf("parse failed: %v", err)
				}
			}
			runtime.KeepAlive(module)
		})
	}
}

// BenchmarkValidate benchmarks validation of pre-parsed modules.
func BenchmarkValidate(b *testing.B) {
	caps := pipeline.DefaultCapabilities()
	for _, sc := range shadersByComplexity {
		b.Run(sc.name, func(b *testing.B) {
			module, err := Parse([]byte(sc.source), sc.stage, nil)
			if err != nil {
				b.Fatalf("parse failed: %v", err)
			}
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := Validate(module, caps); err != nil {
					b.Fatalf("validate failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkEmit benchmarks MSL generation from validated modules.
func BenchmarkEmit(b *testing.B) {
	for _, sc := range shadersByComplexity {
		b.Run(sc.name, func(b *testing.B) {
			module, err := Parse([]byte(sc.source), sc.stage, nil)
			if err != nil {
				b.Fatalf("parse failed: %v", err)
			}
			info, err := Validate(module, pipeline.DefaultCapabilities())
			if err != nil {
				b.Fatalf("validate failed: %v", err)
			}
			b.ReportAllocs()
			b.ResetTimer()

			var code string
			for i := 0; i < b.N; i++ {
				code, _, err = Emit(module, info, msl.DefaultOptions(), msl.PipelineOptions{})
				if err != nil {
					b.Fatalf("emit failed: %v", err)
				}
			}
			runtime.KeepAlive(code)
		})
	}
}

// BenchmarkDriver benchmarks a batch at different concurrency levels.
func BenchmarkDriver(b *testing.B) {
	var inputs []pipeline.Input
	for i := 0; i < 32; i++ {
		sc := shadersByComplexity[i%len(shadersByComplexity)]
		inputs = append(inputs, pipeline.Input{
			Name:   fmt.Sprintf("%s-%d", sc.name, i),
			Stage:  sc.stage,
			Source: []byte(sc.source),
		})
	}
	for _, concurrency := range []int{1, 4, runtime.GOMAXPROCS(0)} {
		b.Run(fmt.Sprintf("concurrency=%d", concurrency), func(b *testing.B) {
			d := pipeline.NewDriver()
			d.Concurrency = concurrency
			d.Logger = quietLogger()
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := d.Run(context.Background(), inputs).Err(); err != nil {
					b.Fatalf("batch failed: %v", err)
				}
			}
		})
	}
}
