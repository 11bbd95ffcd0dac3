package ir

// Block is a sequence of statements.
type Block []Statement

// Statement is a node of the structured control flow tree.
type Statement struct {
	Kind StatementKind
}

// StatementKind is the closed set of statement shapes.
type StatementKind interface {
	statementKind()
}

// Range is a half-open range of expression handles.
type Range struct {
	Start ExpressionHandle
	End   ExpressionHandle
}

// StmtEmit marks the point where a range of expressions is evaluated.
type StmtEmit struct {
	Range Range
}

func (StmtEmit) statementKind() {}

// StmtBlock is a nested scope.
type StmtBlock struct {
	Block Block
}

func (StmtBlock) statementKind() {}

// StmtIf is a two-way branch.
type StmtIf struct {
	Condition ExpressionHandle
	Accept    Block
	Reject    Block
}

func (StmtIf) statementKind() {}

// StmtSwitch is a multi-way branch on an integer selector.
type StmtSwitch struct {
	Selector ExpressionHandle
	Cases    []SwitchCase
}

func (StmtSwitch) statementKind() {}

// SwitchCase is one arm of a switch. FallThrough continues into the next
// case instead of leaving the switch.
type SwitchCase struct {
	Value       SwitchValue
	Body        Block
	FallThrough bool
}

// SwitchValue is a case label.
type SwitchValue interface {
	switchValue()
}

type SwitchValueI32 int32

func (SwitchValueI32) switchValue() {}

type SwitchValueU32 uint32

func (SwitchValueU32) switchValue() {}

type SwitchValueDefault struct{}

func (SwitchValueDefault) switchValue() {}

// StmtLoop repeats Body forever. Continuing runs at the end of every
// iteration and on continue; BreakIf is checked after Continuing.
type StmtLoop struct {
	Body       Block
	Continuing Block
	BreakIf    *ExpressionHandle
}

func (StmtLoop) statementKind() {}

type StmtBreak struct{}

func (StmtBreak) statementKind() {}

type StmtContinue struct{}

func (StmtContinue) statementKind() {}

// StmtReturn leaves the function.
type StmtReturn struct {
	Value *ExpressionHandle
}

func (StmtReturn) statementKind() {}

// StmtKill discards the fragment.
type StmtKill struct{}

func (StmtKill) statementKind() {}

// StmtBarrier synchronizes invocations of a workgroup.
type StmtBarrier struct {
	Flags BarrierFlags
}

func (StmtBarrier) statementKind() {}

// BarrierFlags selects the memory a barrier orders.
type BarrierFlags uint8

const (
	BarrierStorage BarrierFlags = 1 << iota
	BarrierWorkGroup
	BarrierTexture
)

// StmtStore writes through a pointer.
type StmtStore struct {
	Pointer ExpressionHandle
	Value   ExpressionHandle
}

func (StmtStore) statementKind() {}

// StmtImageStore writes a texel of a storage image.
type StmtImageStore struct {
	Image      ExpressionHandle
	Coordinate ExpressionHandle
	ArrayIndex *ExpressionHandle
	Value      ExpressionHandle
}

func (StmtImageStore) statementKind() {}

// StmtCall calls a function. Result, when set, is an ExprCallResult.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
	Result    *ExpressionHandle
}

func (StmtCall) statementKind() {}
