package loader

import "github.com/panyam/pynarrow/decl"

type Env[T any] = decl.Env[T]
type Location = decl.Location
type Node = decl.Node
type Expr = decl.Expr
type Stmt = decl.Stmt
type Module = decl.Module
type NameExpr = decl.NameExpr
type AssignStmt = decl.AssignStmt
type AugAssignStmt = decl.AugAssignStmt
type ExprStmt = decl.ExprStmt
type IfStmt = decl.IfStmt
type WhileStmt = decl.WhileStmt
type ForStmt = decl.ForStmt
type AssertStmt = decl.AssertStmt
type ReturnStmt = decl.ReturnStmt
type ImportStmt = decl.ImportStmt
type FunctionDef = decl.FunctionDef
type ClassDef = decl.ClassDef
type Parameter = decl.Parameter
