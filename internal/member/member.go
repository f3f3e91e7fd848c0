// Package member is the demo memberService: a small member directory kept
// in SQL and exchanged with callers as DataModels.
package member

import (
	"time"

	"github.com/r9s-ai/open-data-router/pkg/converter"
)

type Member struct {
	ID       string
	Name     string
	Email    string
	Age      int
	Active   bool
	JoinedAt time.Time
}

func (m *Member) Fields() []converter.Field {
	return []converter.Field{
		converter.StringField("id", &m.ID),
		converter.StringField("name", &m.Name),
		converter.StringField("email", &m.Email),
		converter.IntField("age", &m.Age),
		converter.BoolField("active", &m.Active),
		converter.TimeField("joinedAt", &m.JoinedAt),
	}
}
