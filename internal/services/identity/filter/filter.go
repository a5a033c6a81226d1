// Package filter provides AIP-160 filter expression parsing and SQL
// translation for list endpoints.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"lifeasagame.dev/internal/services/identity/storage"
)

// FieldType describes a supported filter field type.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldBool   FieldType = "bool"
)

// Fields maps filterable field names to their types. Field names double as
// SQL column names.
type Fields map[string]FieldType

// UserFields lists the filterable account fields.
func UserFields() Fields {
	return Fields{
		"email":        FieldString,
		"full_name":    FieldString,
		"is_superuser": FieldBool,
	}
}

// RoleFields lists the filterable role fields.
func RoleFields() Fields {
	return Fields{
		"codename":    FieldString,
		"description": FieldString,
	}
}

// Parse parses an AIP-160 filter expression against the provided fields and
// returns a SQL WHERE fragment with bound args. An empty expression yields
// the zero predicate, which matches every row.
func Parse(filterStr string, fields Fields) (storage.Predicate, error) {
	if strings.TrimSpace(filterStr) == "" {
		return storage.Predicate{}, nil
	}

	decls, err := declarations(fields)
	if err != nil {
		return storage.Predicate{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return storage.Predicate{}, fmt.Errorf("parse filter: %w", err)
	}

	return translateExpr(parsed.CheckedExpr.Expr, fields)
}

func declarations(fields Fields) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, kind := range fields {
		switch kind {
		case FieldString:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeString))
		case FieldBool:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeBool))
		default:
			return nil, fmt.Errorf("unsupported field type for %s", name)
		}
	}
	return filtering.NewDeclarations(decls...)
}

func translateExpr(e *expr.Expr, fields Fields) (storage.Predicate, error) {
	if e == nil {
		return storage.Predicate{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr, fields)
	default:
		return storage.Predicate{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call, fields Fields) (storage.Predicate, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateLogical(call.Args, "AND", fields)
	case "_||_", "OR":
		return translateLogical(call.Args, "OR", fields)
	case "_==_", "=":
		return translateComparison(call.Args, "=", fields)
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=", fields)
	case "_<_", "<":
		return translateComparison(call.Args, "<", fields)
	case "_<=_", "<=":
		return translateComparison(call.Args, "<=", fields)
	case "_>_", ">":
		return translateComparison(call.Args, ">", fields)
	case "_>=_", ">=":
		return translateComparison(call.Args, ">=", fields)
	default:
		return storage.Predicate{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, op string, fields Fields) (storage.Predicate, error) {
	if len(args) != 2 {
		return storage.Predicate{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := translateExpr(args[0], fields)
	if err != nil {
		return storage.Predicate{}, err
	}
	right, err := translateExpr(args[1], fields)
	if err != nil {
		return storage.Predicate{}, err
	}

	return storage.Predicate{
		SQL:  fmt.Sprintf("(%s %s %s)", left.SQL, op, right.SQL),
		Args: append(left.Args, right.Args...),
	}, nil
}

func translateComparison(args []*expr.Expr, op string, fields Fields) (storage.Predicate, error) {
	if len(args) != 2 {
		return storage.Predicate{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return storage.Predicate{}, err
	}
	if _, ok := fields[field]; !ok {
		return storage.Predicate{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return storage.Predicate{}, err
	}

	return storage.Predicate{
		SQL:  fmt.Sprintf("%s %s ?", field, op),
		Args: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	default:
		return nil, fmt.Errorf("expected constant, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
