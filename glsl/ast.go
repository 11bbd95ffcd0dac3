package glsl

import "github.com/gogpu/xshader/ir"

// TranslationUnit is the AST of one source file.
type TranslationUnit struct {
	Decls []Decl
}

// Node is implemented by every AST node.
type Node interface {
	Pos() Location
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// StorageQualifier is the storage class of a declaration.
type StorageQualifier uint8

const (
	StorageNone StorageQualifier = iota
	StorageConst
	StorageIn
	StorageOut
	StorageInout
	StorageUniform
	StorageBuffer
	StorageShared
)

// InterpolationQualifier is flat, smooth or noperspective.
type InterpolationQualifier uint8

const (
	InterpDefault InterpolationQualifier = iota
	InterpSmooth
	InterpFlat
	InterpNoPerspective
)

// LayoutQualifier is one entry of layout(...). Value is nil for bare names.
type LayoutQualifier struct {
	Name  string
	Value Expr
	Loc   Location
}

// Qualifiers collects every qualifier written before a type.
type Qualifiers struct {
	Storage       StorageQualifier
	Layout        []LayoutQualifier
	Interpolation InterpolationQualifier
	Centroid      bool
	Sample        bool
	ReadOnly      bool
	WriteOnly     bool
	Loc           Location
}

// TypeSpec names a type. Struct is set for inline struct definitions.
// A nil entry of ArraySizes is an unsized dimension.
type TypeSpec struct {
	Name       string
	Struct     *StructDecl
	ArraySizes []Expr
	Loc        Location
}

// Declarator is one name of a declaration list.
type Declarator struct {
	Name       string
	ArraySizes []Expr
	Init       Expr
	Loc        Location
}

// VarDecl declares one or more variables of a type.
type VarDecl struct {
	Quals Qualifiers
	Type  TypeSpec
	Names []Declarator
	Loc   Location
}

// StructField is a member declaration list.
type StructField struct {
	Quals Qualifiers
	Type  TypeSpec
	Names []Declarator
}

// StructDecl defines a struct type.
type StructDecl struct {
	Name   string
	Fields []StructField
	Loc    Location
}

// BlockDecl is an interface block: uniform, buffer, in or out.
type BlockDecl struct {
	Quals         Qualifiers
	BlockName     string
	Fields        []StructField
	InstanceName  string
	InstanceSizes []Expr
	Loc           Location
}

// ParamDecl is a function parameter.
type ParamDecl struct {
	Quals      Qualifiers
	Type       TypeSpec
	Name       string
	ArraySizes []Expr
	Loc        Location
}

// FunctionDecl is a function definition or, with a nil Body, a prototype.
type FunctionDecl struct {
	ReturnType TypeSpec
	Name       string
	Params     []ParamDecl
	Body       *BlockStmt
	Loc        Location
}

// DefaultDecl is a qualifier-only declaration such as
// layout(local_size_x = 8) in;
type DefaultDecl struct {
	Quals Qualifiers
	Loc   Location
}

func (d *VarDecl) Pos() Location      { return d.Loc }
func (d *StructDecl) Pos() Location   { return d.Loc }
func (d *BlockDecl) Pos() Location    { return d.Loc }
func (d *FunctionDecl) Pos() Location { return d.Loc }
func (d *DefaultDecl) Pos() Location  { return d.Loc }

func (*VarDecl) declNode()      {}
func (*StructDecl) declNode()   {}
func (*BlockDecl) declNode()    {}
func (*FunctionDecl) declNode() {}
func (*DefaultDecl) declNode()  {}

// Statements.
type (
	BlockStmt struct {
		Stmts []Stmt
		Loc   Location
	}
	DeclStmt struct {
		Var *VarDecl
	}
	ExprStmt struct {
		X Expr
	}
	EmptyStmt struct {
		Loc Location
	}
	IfStmt struct {
		Cond Expr
		Then Stmt
		Else Stmt
		Loc  Location
	}
	ForStmt struct {
		Init   Stmt
		Cond   Expr
		Update Expr
		Body   Stmt
		Loc    Location
	}
	WhileStmt struct {
		Cond Expr
		Body Stmt
		Loc  Location
	}
	DoWhileStmt struct {
		Body Stmt
		Cond Expr
		Loc  Location
	}
	SwitchStmt struct {
		Selector Expr
		Cases    []CaseClause
		Loc      Location
	}
	BreakStmt struct {
		Loc Location
	}
	ContinueStmt struct {
		Loc Location
	}
	ReturnStmt struct {
		Value Expr
		Loc   Location
	}
	DiscardStmt struct {
		Loc Location
	}
)

// CaseClause is one label of a switch with the statements after it. Value
// is nil for default.
type CaseClause struct {
	Value Expr
	Body  []Stmt
	Loc   Location
}

func (s *BlockStmt) Pos() Location    { return s.Loc }
func (s *DeclStmt) Pos() Location     { return s.Var.Loc }
func (s *ExprStmt) Pos() Location     { return s.X.Pos() }
func (s *EmptyStmt) Pos() Location    { return s.Loc }
func (s *IfStmt) Pos() Location       { return s.Loc }
func (s *ForStmt) Pos() Location      { return s.Loc }
func (s *WhileStmt) Pos() Location    { return s.Loc }
func (s *DoWhileStmt) Pos() Location  { return s.Loc }
func (s *SwitchStmt) Pos() Location   { return s.Loc }
func (s *BreakStmt) Pos() Location    { return s.Loc }
func (s *ContinueStmt) Pos() Location { return s.Loc }
func (s *ReturnStmt) Pos() Location   { return s.Loc }
func (s *DiscardStmt) Pos() Location  { return s.Loc }

func (*BlockStmt) stmtNode()    {}
func (*DeclStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*EmptyStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*DoWhileStmt) stmtNode()  {}
func (*SwitchStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}
func (*DiscardStmt) stmtNode()  {}

// Expressions.
type (
	Ident struct {
		Name string
		Loc  Location
	}
	IntLit struct {
		Text string
		Loc  Location
	}
	FloatLit struct {
		Text string
		Loc  Location
	}
	BoolLit struct {
		Value bool
		Loc   Location
	}
	BinaryExpr struct {
		Op    TokenKind
		Left  Expr
		Right Expr
		Loc   Location
	}
	UnaryExpr struct {
		Op      TokenKind
		Operand Expr
		Loc     Location
	}
	// IncDecExpr is ++ or --, prefix or postfix.
	IncDecExpr struct {
		Op      TokenKind
		Operand Expr
		Prefix  bool
		Loc     Location
	}
	AssignExpr struct {
		Op     TokenKind
		Target Expr
		Value  Expr
		Loc    Location
	}
	TernaryExpr struct {
		Cond Expr
		Then Expr
		Else Expr
		Loc  Location
	}
	SequenceExpr struct {
		Left  Expr
		Right Expr
		Loc   Location
	}
	// CallExpr is a function call or a constructor. ArraySizes is set for
	// array constructors such as float[3](...). A brace initializer list is
	// a CallExpr with an empty Name.
	CallExpr struct {
		Name       string
		ArraySizes []Expr
		Args       []Expr
		Loc        Location

		typ *ir.TypeHandle // constructed type of an initializer list
	}
	MemberExpr struct {
		Base Expr
		Name string
		Loc  Location
	}
	IndexExpr struct {
		Base  Expr
		Index Expr
		Loc   Location
	}
	// LengthExpr is the .length() method of arrays, vectors and matrices.
	LengthExpr struct {
		Base Expr
		Loc  Location
	}
)

func (e *Ident) Pos() Location        { return e.Loc }
func (e *IntLit) Pos() Location       { return e.Loc }
func (e *FloatLit) Pos() Location     { return e.Loc }
func (e *BoolLit) Pos() Location      { return e.Loc }
func (e *BinaryExpr) Pos() Location   { return e.Loc }
func (e *UnaryExpr) Pos() Location    { return e.Loc }
func (e *IncDecExpr) Pos() Location   { return e.Loc }
func (e *AssignExpr) Pos() Location   { return e.Loc }
func (e *TernaryExpr) Pos() Location  { return e.Loc }
func (e *SequenceExpr) Pos() Location { return e.Loc }
func (e *CallExpr) Pos() Location     { return e.Loc }
func (e *MemberExpr) Pos() Location   { return e.Loc }
func (e *IndexExpr) Pos() Location    { return e.Loc }
func (e *LengthExpr) Pos() Location   { return e.Loc }

func (*Ident) exprNode()        {}
func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*BoolLit) exprNode()      {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*IncDecExpr) exprNode()   {}
func (*AssignExpr) exprNode()   {}
func (*TernaryExpr) exprNode()  {}
func (*SequenceExpr) exprNode() {}
func (*CallExpr) exprNode()     {}
func (*MemberExpr) exprNode()   {}
func (*IndexExpr) exprNode()    {}
func (*LengthExpr) exprNode()   {}
