// internal/permission/expression_test.go
package permission

import (
	"testing"
)

func evalRule(t *testing.T, rule, userID string, row map[string]any) bool {
	t.Helper()
	node, err := Parse(rule)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", rule, err)
	}
	return node.Eval(&Context{RequestUserID: userID, Row: row})
}

func TestExpressionEval(t *testing.T) {
	row := map[string]any{"author": "user_1", "status": "live", "editor": nil}

	testCases := []struct {
		name   string
		rule   string
		userID string
		want   bool
	}{
		{"owner matches", "@request.user == author", "user_1", true},
		{"owner mismatch", "@request.user == author", "user_2", false},
		{"negated owner", "@request.user != author", "user_2", true},
		{"field to field", "author == author", "anyone", true},
		{"and both true", "@request.user == author && status == status", "user_1", true},
		{"and short circuit", "@request.user == editor && status == status", "user_1", false},
		{"or recovers", "@request.user == author || @request.user == editor", "user_1", true},
		{"or both false", "@request.user == author || @request.user == editor", "user_3", false},
		{"parens group", "(@request.user == author || @request.user == editor) && status == status", "user_1", true},
		{"tautology", "(author == author || author != author)", "anyone", true},
		{"missing field is empty", "@request.user == missing", "", true},
		{"nil field is empty", "editor == missing", "anyone", true},
		{"whitespace tolerated", "  @request.user   ==  author ", "user_1", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := evalRule(t, tc.rule, tc.userID, row); got != tc.want {
				t.Errorf("eval(%q) with user %q = %v; want %v", tc.rule, tc.userID, got, tc.want)
			}
		})
	}
}

func TestLeftAssociativeFold(t *testing.T) {
	// a && b || c folds as (a && b) || c: with a false and c true the whole
	// expression is true.
	row := map[string]any{"a": "x", "b": "x", "c": "x"}
	rule := "a != a && b == b || c == c"
	if !evalRule(t, rule, "u", row) {
		t.Errorf("eval(%q) = false; want (false && true) || true = true", rule)
	}
}

func TestParseErrors(t *testing.T) {
	invalid := []string{
		"",
		"author",
		"author ==",
		"== author",
		"(author == a",
		"author == a)",
		"@request.role == author",
		"Author == a",
		"author = a",
		"author == a &&",
	}
	for _, rule := range invalid {
		if _, err := Parse(rule); err == nil {
			t.Errorf("Parse(%q) should fail", rule)
		}
	}
}

func TestAuthorize(t *testing.T) {
	rule := "@request.user == author"
	row := map[string]any{"author": "user_1"}

	allowed, err := Authorize(&rule, "user_1", row)
	if err != nil || !allowed {
		t.Errorf("Authorize = (%v, %v); want (true, nil)", allowed, err)
	}

	// Absent rules deny.
	allowed, err = Authorize(nil, "user_1", row)
	if err != nil || allowed {
		t.Errorf("Authorize(nil rule) = (%v, %v); want (false, nil)", allowed, err)
	}
	empty := "   "
	allowed, err = Authorize(&empty, "user_1", row)
	if err != nil || allowed {
		t.Errorf("Authorize(blank rule) = (%v, %v); want (false, nil)", allowed, err)
	}

	// Malformed rules deny with an error.
	bad := "author =="
	allowed, err = Authorize(&bad, "user_1", row)
	if err == nil || allowed {
		t.Errorf("Authorize(bad rule) = (%v, %v); want (false, err)", allowed, err)
	}
}
