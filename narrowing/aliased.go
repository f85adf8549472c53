package narrowing

import "github.com/panyam/pynarrow/decl"

// matchAliasedCondition handles a test that is a local name whose single
// assignment holds a condition about the reference:
//
//	is_none = val is None
//	if is_none: ...
//
// The alias is rejected when the reference may be reassigned between the
// alias assignment and the test.
func matchAliasedCondition(r *matchRequest) *Callback {
	test, ok := r.test.(*decl.NameExpr)
	if !ok {
		return nil
	}
	reference, ok := r.reference.(*decl.NameExpr)
	if !ok || reference == test {
		return nil
	}

	testDecls := r.ev.LocalDeclarations(test, test, true)
	if len(testDecls) != 1 || testDecls[0].IsParameter {
		return nil
	}
	alias := testDecls[0]

	refDecls := r.ev.LocalDeclarations(reference, test, false)
	if refDecls == nil {
		return nil
	}
	if len(refDecls) > 1 {
		for _, d := range refDecls {
			if r.ev.IsNodeReachable(test, d.Node) && r.ev.IsNodeReachable(d.Node, alias.Node) {
				return nil
			}
		}
	}

	initializer := alias.InferredTypeSource
	if initializer == nil || decl.IsNodeContainedWithin(test, initializer) {
		return nil
	}
	return r.recurse(initializer, r.isPositive)
}
