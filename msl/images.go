package msl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// imageOf returns the image type behind an image or fused sampled-image
// expression.
func (w *Writer) imageOf(handle ir.ExpressionHandle) (ir.ImageType, error) {
	switch t := w.getExpressionType(handle).(type) {
	case ir.ImageType:
		return t, nil
	case ir.SampledImageType:
		return t.Image, nil
	default:
		return ir.ImageType{}, fmt.Errorf("expression [%d] is not an image: %T", handle, t)
	}
}

// writeSamplerOf writes the sampler half of a fused sampled image.
func (w *Writer) writeSamplerOf(handle ir.ExpressionHandle) error {
	switch e := w.currentFunction.Expressions[handle].Kind.(type) {
	case ir.ExprGlobalVariable:
		w.write("%s%s", w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: uint32(e.Variable)}), samplerSuffix)
		return nil
	case ir.ExprFunctionArgument:
		w.write("%s%s", w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(w.currentFuncHandle), handle2: e.Index}), samplerSuffix)
		return nil
	}
	return fmt.Errorf("sampled image [%d] is neither a global nor an argument", handle)
}

// writeSampler writes the sampler operand of a sample.
func (w *Writer) writeSampler(sample ir.ExprImageSample) error {
	if _, fused := w.getExpressionType(sample.Image).(ir.SampledImageType); fused {
		return w.writeSamplerOf(sample.Image)
	}
	return w.writeExpression(sample.Sampler)
}

// writeImageSample writes sample, sample_compare, gather or gather_compare.
//
//nolint:gocognit,gocyclo,cyclop // Texture sampling has many optional operands
func (w *Writer) writeImageSample(sample ir.ExprImageSample) error {
	img, err := w.imageOf(sample.Image)
	if err != nil {
		return err
	}

	method := "sample"
	switch {
	case sample.Gather != nil && sample.DepthRef != nil:
		method = "gather_compare"
	case sample.Gather != nil:
		method = "gather"
	case sample.DepthRef != nil:
		method = "sample_compare"
	}

	if err := w.writeExpression(sample.Image); err != nil {
		return err
	}
	w.write(".%s(", method)
	if err := w.writeSampler(sample); err != nil {
		return err
	}
	w.write(", ")
	if err := w.writeExpression(sample.Coordinate); err != nil {
		return err
	}
	if sample.ArrayIndex != nil {
		w.write(", uint(")
		if err := w.writeExpression(*sample.ArrayIndex); err != nil {
			return err
		}
		w.write(")")
	}
	if sample.DepthRef != nil {
		w.write(", ")
		if err := w.writeExpression(*sample.DepthRef); err != nil {
			return err
		}
	}

	if sample.Gather == nil && img.Dim != ir.Dim1D {
		if err := w.writeSampleLevel(sample.Level, img.Dim); err != nil {
			return err
		}
	}

	switch {
	case sample.Offset != nil:
		w.write(", ")
		if err := w.writeExpression(*sample.Offset); err != nil {
			return err
		}
	case sample.Gather != nil && sample.DepthRef == nil && img.Class != ir.ImageClassDepth && img.Dim != ir.DimCube:
		// The component is the last parameter, after the offset.
		w.write(", %sint2(0)", Namespace)
	}

	if sample.Gather != nil && sample.DepthRef == nil && img.Class != ir.ImageClassDepth {
		w.write(", %scomponent::%c", Namespace, "xyzw"[*sample.Gather])
	}
	w.write(")")
	return nil
}

// writeSampleLevel writes the level-of-detail option of a sample.
func (w *Writer) writeSampleLevel(level ir.SampleLevel, dim ir.ImageDimension) error {
	switch l := level.(type) {
	case nil, ir.SampleLevelAuto:
		return nil
	case ir.SampleLevelZero:
		w.write(", %slevel(0.0)", Namespace)
		return nil
	case ir.SampleLevelExact:
		w.write(", %slevel(", Namespace)
		if err := w.writeExpression(l.Level); err != nil {
			return err
		}
		w.write(")")
		return nil
	case ir.SampleLevelBias:
		w.write(", %sbias(", Namespace)
		if err := w.writeExpression(l.Bias); err != nil {
			return err
		}
		w.write(")")
		return nil
	case ir.SampleLevelGradient:
		suffix := "2d"
		switch dim {
		case ir.Dim3D:
			suffix = "3d"
		case ir.DimCube:
			suffix = "cube"
		}
		w.write(", %sgradient%s(", Namespace, suffix)
		if err := w.writeExpression(l.X); err != nil {
			return err
		}
		w.write(", ")
		if err := w.writeExpression(l.Y); err != nil {
			return err
		}
		w.write(")")
		return nil
	default:
		return fmt.Errorf("unsupported sample level %T", level)
	}
}

// writeTexelCoordinate writes an integer coordinate converted to the
// unsigned form read and write expect.
func (w *Writer) writeTexelCoordinate(coord ir.ExpressionHandle, dim ir.ImageDimension) error {
	switch dim {
	case ir.Dim1D:
		w.write("uint(")
	case ir.Dim3D:
		w.write("%suint3(", Namespace)
	default:
		w.write("%suint2(", Namespace)
	}
	if err := w.writeExpression(coord); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeUintArgument writes ", uint(expr)".
func (w *Writer) writeUintArgument(handle ir.ExpressionHandle) error {
	w.write(", uint(")
	if err := w.writeExpression(handle); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeImageLoad writes a texel fetch.
func (w *Writer) writeImageLoad(load ir.ExprImageLoad) error {
	img, err := w.imageOf(load.Image)
	if err != nil {
		return err
	}
	if err := w.writeExpression(load.Image); err != nil {
		return err
	}
	w.write(".read(")
	if err := w.writeTexelCoordinate(load.Coordinate, img.Dim); err != nil {
		return err
	}
	if load.ArrayIndex != nil {
		if err := w.writeUintArgument(*load.ArrayIndex); err != nil {
			return err
		}
	}
	if load.Sample != nil {
		if err := w.writeUintArgument(*load.Sample); err != nil {
			return err
		}
	} else if load.Level != nil && img.Class != ir.ImageClassStorage {
		if err := w.writeUintArgument(*load.Level); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

// writeImageQuery writes a texture metadata query.
func (w *Writer) writeImageQuery(query ir.ExprImageQuery) error {
	img, err := w.imageOf(query.Image)
	if err != nil {
		return err
	}

	getter := func(name string) error {
		if err := w.writeExpression(query.Image); err != nil {
			return err
		}
		w.write(".%s(", name)
		if size, ok := query.Query.(ir.ImageQuerySize); ok && size.Level != nil && !img.Multisampled {
			w.write("uint(")
			if err := w.writeExpression(*size.Level); err != nil {
				return err
			}
			w.write(")")
		}
		w.write(")")
		return nil
	}

	switch query.Query.(type) {
	case ir.ImageQuerySize:
		var getters []string
		switch img.Dim {
		case ir.Dim1D:
			return getter("get_width")
		case ir.Dim3D:
			w.write("%suint3(", Namespace)
			getters = []string{"get_width", "get_height", "get_depth"}
		default:
			w.write("%suint2(", Namespace)
			getters = []string{"get_width", "get_height"}
		}
		for i, name := range getters {
			if i > 0 {
				w.write(", ")
			}
			if err := getter(name); err != nil {
				return err
			}
		}
		w.write(")")
		return nil
	case ir.ImageQueryNumLevels:
		return getter("get_num_mip_levels")
	case ir.ImageQueryNumLayers:
		return getter("get_array_size")
	case ir.ImageQueryNumSamples:
		return getter("get_num_samples")
	default:
		return fmt.Errorf("unsupported image query %T", query.Query)
	}
}

// writeImageStore writes a storage texel write.
func (w *Writer) writeImageStore(store ir.StmtImageStore) error {
	img, err := w.imageOf(store.Image)
	if err != nil {
		return err
	}
	w.writeIndent()
	if err := w.writeExpression(store.Image); err != nil {
		return err
	}
	w.write(".write(")
	if err := w.writeExpression(store.Value); err != nil {
		return err
	}
	w.write(", ")
	if err := w.writeTexelCoordinate(store.Coordinate, img.Dim); err != nil {
		return err
	}
	if store.ArrayIndex != nil {
		if err := w.writeUintArgument(*store.ArrayIndex); err != nil {
			return err
		}
	}
	w.write(");\n")
	return nil
}
