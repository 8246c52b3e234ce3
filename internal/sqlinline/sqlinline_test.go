package sqlinline

import (
	"testing"

	"todoapp/internal/infra"
)

func TestStatementsCarryUniqueMarkers(t *testing.T) {
	statements := map[string]string{
		"QListTodos":                QListTodos,
		"QInsertTodo":               QInsertTodo,
		"QUpdateTodo":               QUpdateTodo,
		"QDeleteTodo":               QDeleteTodo,
		"QSelectSubscriptionByUser": QSelectSubscriptionByUser,
		"QUpsertSubscription":       QUpsertSubscription,
		"QDeleteSubscription":       QDeleteSubscription,
		"QSelectClientSession":      QSelectClientSession,
		"QUpsertClientSession":      QUpsertClientSession,
		"QDeleteClientSession":      QDeleteClientSession,
	}

	seen := make(map[string]string, len(statements))
	for name, stmt := range statements {
		marker, err := infra.ExtractMarker(stmt)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if other, dup := seen[marker]; dup {
			t.Fatalf("%s reuses marker %s from %s", name, marker, other)
		}
		seen[marker] = name
	}
}
