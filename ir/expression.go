package ir

// Expression is an entry of a function's expression arena.
type Expression struct {
	Kind ExpressionKind
}

// ExpressionKind is the closed set of expression shapes.
type ExpressionKind interface {
	expressionKind()
}

// Literal is an immediate scalar.
type Literal struct {
	Value LiteralValue
}

func (Literal) expressionKind() {}

// LiteralValue is the payload of a Literal.
type LiteralValue interface {
	literalValue()
}

type (
	LiteralF64  float64
	LiteralF32  float32
	LiteralU32  uint32
	LiteralI32  int32
	LiteralU64  uint64
	LiteralI64  int64
	LiteralBool bool
)

func (LiteralF64) literalValue()  {}
func (LiteralF32) literalValue()  {}
func (LiteralU32) literalValue()  {}
func (LiteralI32) literalValue()  {}
func (LiteralU64) literalValue()  {}
func (LiteralI64) literalValue()  {}
func (LiteralBool) literalValue() {}

// LiteralScalar returns the scalar type of a literal value.
func LiteralScalar(v LiteralValue) ScalarType {
	switch v.(type) {
	case LiteralF64:
		return ScalarF64
	case LiteralF32:
		return ScalarF32
	case LiteralU32:
		return ScalarU32
	case LiteralI32:
		return ScalarI32
	case LiteralU64:
		return ScalarU64
	case LiteralI64:
		return ScalarI64
	default:
		return ScalarBoolean
	}
}

// ExprConstant references a module constant.
type ExprConstant struct {
	Constant ConstantHandle
}

func (ExprConstant) expressionKind() {}

// ExprZeroValue is the zero value of a type.
type ExprZeroValue struct {
	Type TypeHandle
}

func (ExprZeroValue) expressionKind() {}

// ExprCompose builds a composite from components.
type ExprCompose struct {
	Type       TypeHandle
	Components []ExpressionHandle
}

func (ExprCompose) expressionKind() {}

// ExprAccess indexes an array, vector or matrix with a runtime index.
// NonUniform marks indices the source declared as non-uniform.
type ExprAccess struct {
	Base       ExpressionHandle
	Index      ExpressionHandle
	NonUniform bool
}

func (ExprAccess) expressionKind() {}

// ExprAccessIndex indexes with a constant index, including struct members.
type ExprAccessIndex struct {
	Base  ExpressionHandle
	Index uint32
}

func (ExprAccessIndex) expressionKind() {}

// ExprSplat broadcasts a scalar into a vector.
type ExprSplat struct {
	Size  VectorSize
	Value ExpressionHandle
}

func (ExprSplat) expressionKind() {}

// SwizzleComponent selects a vector component.
type SwizzleComponent uint8

const (
	SwizzleX SwizzleComponent = iota
	SwizzleY
	SwizzleZ
	SwizzleW
)

// ExprSwizzle reorders vector components. Size is at least 2.
type ExprSwizzle struct {
	Size    VectorSize
	Vector  ExpressionHandle
	Pattern [4]SwizzleComponent
}

func (ExprSwizzle) expressionKind() {}

// ExprFunctionArgument reads a parameter of the current function.
type ExprFunctionArgument struct {
	Index uint32
}

func (ExprFunctionArgument) expressionKind() {}

// ExprGlobalVariable references a global. For handle-space globals the
// expression is the value itself; otherwise it is a pointer.
type ExprGlobalVariable struct {
	Variable GlobalVariableHandle
}

func (ExprGlobalVariable) expressionKind() {}

// ExprLocalVariable is a pointer to a local variable.
type ExprLocalVariable struct {
	Variable uint32
}

func (ExprLocalVariable) expressionKind() {}

// ExprLoad reads through a pointer.
type ExprLoad struct {
	Pointer ExpressionHandle
}

func (ExprLoad) expressionKind() {}

// ExprImageSample samples an image. For fused sampled images Sampler equals
// Image.
type ExprImageSample struct {
	Image      ExpressionHandle
	Sampler    ExpressionHandle
	Gather     *SwizzleComponent
	Coordinate ExpressionHandle
	ArrayIndex *ExpressionHandle
	Offset     *ExpressionHandle
	Level      SampleLevel
	DepthRef   *ExpressionHandle
}

func (ExprImageSample) expressionKind() {}

// SampleLevel selects the level of detail of a sample.
type SampleLevel interface {
	sampleLevel()
}

type SampleLevelAuto struct{}

func (SampleLevelAuto) sampleLevel() {}

type SampleLevelZero struct{}

func (SampleLevelZero) sampleLevel() {}

type SampleLevelExact struct {
	Level ExpressionHandle
}

func (SampleLevelExact) sampleLevel() {}

type SampleLevelBias struct {
	Bias ExpressionHandle
}

func (SampleLevelBias) sampleLevel() {}

type SampleLevelGradient struct {
	X ExpressionHandle
	Y ExpressionHandle
}

func (SampleLevelGradient) sampleLevel() {}

// ExprImageLoad fetches a single texel.
type ExprImageLoad struct {
	Image      ExpressionHandle
	Coordinate ExpressionHandle
	ArrayIndex *ExpressionHandle
	Sample     *ExpressionHandle
	Level      *ExpressionHandle
}

func (ExprImageLoad) expressionKind() {}

// ExprImageQuery reads image metadata.
type ExprImageQuery struct {
	Image ExpressionHandle
	Query ImageQuery
}

func (ExprImageQuery) expressionKind() {}

// ImageQuery is the metadata requested by ExprImageQuery.
type ImageQuery interface {
	imageQuery()
}

// ImageQuerySize yields the size without array layers, as uint or uintN.
type ImageQuerySize struct {
	Level *ExpressionHandle
}

func (ImageQuerySize) imageQuery() {}

type ImageQueryNumLevels struct{}

func (ImageQueryNumLevels) imageQuery() {}

type ImageQueryNumLayers struct{}

func (ImageQueryNumLayers) imageQuery() {}

type ImageQueryNumSamples struct{}

func (ImageQueryNumSamples) imageQuery() {}

// ExprUnary applies a unary operator.
type ExprUnary struct {
	Op   UnaryOperator
	Expr ExpressionHandle
}

func (ExprUnary) expressionKind() {}

// UnaryOperator is a unary operator.
type UnaryOperator uint8

const (
	UnaryNegate UnaryOperator = iota
	UnaryLogicalNot
	UnaryBitwiseNot
)

// ExprBinary applies a binary operator.
type ExprBinary struct {
	Op    BinaryOperator
	Left  ExpressionHandle
	Right ExpressionHandle
}

func (ExprBinary) expressionKind() {}

// BinaryOperator is a binary operator.
type BinaryOperator uint8

const (
	BinaryAdd BinaryOperator = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryEqual
	BinaryNotEqual
	BinaryLess
	BinaryLessEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryAnd
	BinaryExclusiveOr
	BinaryInclusiveOr
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryShiftLeft
	BinaryShiftRight
)

// IsComparison reports whether the operator yields booleans.
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual,
		BinaryGreater, BinaryGreaterEqual:
		return true
	}
	return false
}

// ExprSelect picks Accept or Reject based on Condition. A vector condition
// selects per component.
type ExprSelect struct {
	Condition ExpressionHandle
	Accept    ExpressionHandle
	Reject    ExpressionHandle
}

func (ExprSelect) expressionKind() {}

// ExprDerivative computes a screen-space derivative.
type ExprDerivative struct {
	Axis    DerivativeAxis
	Control DerivativeControl
	Expr    ExpressionHandle
}

func (ExprDerivative) expressionKind() {}

// DerivativeAxis is the derivative direction.
type DerivativeAxis uint8

const (
	DerivativeX DerivativeAxis = iota
	DerivativeY
	DerivativeWidth
)

// DerivativeControl selects derivative precision.
type DerivativeControl uint8

const (
	DerivativeNone DerivativeControl = iota
	DerivativeCoarse
	DerivativeFine
)

// ExprRelational is a boolean reduction or floating-point classification.
type ExprRelational struct {
	Fun      RelationalFunction
	Argument ExpressionHandle
}

func (ExprRelational) expressionKind() {}

// RelationalFunction is a relational builtin.
type RelationalFunction uint8

const (
	RelationalAll RelationalFunction = iota
	RelationalAny
	RelationalIsNan
	RelationalIsInf
)

// ExprMath calls a math builtin with up to four arguments.
type ExprMath struct {
	Fun  MathFunction
	Arg  ExpressionHandle
	Arg1 *ExpressionHandle
	Arg2 *ExpressionHandle
	Arg3 *ExpressionHandle
}

func (ExprMath) expressionKind() {}

// MathFunction is a math builtin.
type MathFunction uint8

const (
	MathAbs MathFunction = iota
	MathMin
	MathMax
	MathClamp
	MathSaturate
	MathCos
	MathCosh
	MathSin
	MathSinh
	MathTan
	MathTanh
	MathAcos
	MathAsin
	MathAtan
	MathAtan2
	MathAsinh
	MathAcosh
	MathAtanh
	MathRadians
	MathDegrees
	MathCeil
	MathFloor
	MathRound
	MathFract
	MathTrunc
	MathExp
	MathExp2
	MathLog
	MathLog2
	MathPow
	MathDot
	MathOuter
	MathCross
	MathDistance
	MathLength
	MathNormalize
	MathFaceForward
	MathReflect
	MathRefract
	MathSign
	MathFma
	MathMix
	MathStep
	MathSmoothStep
	MathSqrt
	MathInverseSqrt
	MathInverse
	MathTranspose
	MathDeterminant
	MathCountTrailingZeros
	MathCountLeadingZeros
	MathCountOneBits
	MathReverseBits
	MathExtractBits
	MathInsertBits
	MathFirstTrailingBit
	MathFirstLeadingBit
)

// ArgumentCount returns how many arguments the function takes.
func (f MathFunction) ArgumentCount() int {
	switch f {
	case MathMin, MathMax, MathAtan2, MathPow, MathDot, MathOuter, MathCross,
		MathDistance, MathReflect, MathStep:
		return 2
	case MathClamp, MathFaceForward, MathRefract, MathFma, MathMix,
		MathSmoothStep, MathExtractBits:
		return 3
	case MathInsertBits:
		return 4
	default:
		return 1
	}
}

// ExprAs converts or bitcasts to another scalar kind. Convert holds the
// target width for value conversions and is nil for bitcasts.
type ExprAs struct {
	Expr    ExpressionHandle
	Kind    ScalarKind
	Convert *uint8
}

func (ExprAs) expressionKind() {}

// ExprCallResult is the value produced by a StmtCall.
type ExprCallResult struct {
	Function FunctionHandle
}

func (ExprCallResult) expressionKind() {}

// ExprArrayLength is the element count of a runtime-sized array.
type ExprArrayLength struct {
	Array ExpressionHandle
}

func (ExprArrayLength) expressionKind() {}
