package datasource

import (
	"fmt"
	"reflect"
	"testing"
)

func dollar(pos int) string { return fmt.Sprintf("$%d", pos) }
func at(name string) string { return "@" + name }

func TestRewritePositional(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      string
		wantCount int
	}{
		{
			name:      "two placeholders",
			query:     "SELECT * FROM leads WHERE client_id = ? AND status = ?",
			want:      "SELECT * FROM leads WHERE client_id = $1 AND status = $2",
			wantCount: 2,
		},
		{
			name:      "question mark inside string literal",
			query:     "SELECT * FROM leads WHERE nota = 'why?' AND id = ?",
			want:      "SELECT * FROM leads WHERE nota = 'why?' AND id = $1",
			wantCount: 1,
		},
		{
			name:      "no placeholders",
			query:     "SELECT 1",
			want:      "SELECT 1",
			wantCount: 0,
		},
		{
			name:      "quoted identifier untouched",
			query:     `SELECT "odd?col" FROM t WHERE id = ?`,
			want:      `SELECT "odd?col" FROM t WHERE id = $1`,
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, count := RewritePositional(tt.query, dollar)
			if got != tt.want {
				t.Errorf("rewritten = %q, want %q", got, tt.want)
			}
			if count != tt.wantCount {
				t.Errorf("count = %d, want %d", count, tt.wantCount)
			}
		})
	}
}

func TestRewriteNamed(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      string
		wantNames []string
	}{
		{
			name:      "two distinct names",
			query:     "SELECT * FROM leads WHERE client_id = :client_id AND status = :status",
			want:      "SELECT * FROM leads WHERE client_id = @client_id AND status = @status",
			wantNames: []string{"client_id", "status"},
		},
		{
			name:      "repeated name appears twice",
			query:     "SELECT * FROM t WHERE a = :x OR b = :x",
			want:      "SELECT * FROM t WHERE a = @x OR b = @x",
			wantNames: []string{"x", "x"},
		},
		{
			name:      "postgres cast preserved",
			query:     "SELECT created_at::date FROM t WHERE id = :id",
			want:      "SELECT created_at::date FROM t WHERE id = @id",
			wantNames: []string{"id"},
		},
		{
			name:      "colon inside string literal",
			query:     "SELECT * FROM t WHERE hora = '12:30' AND id = :id",
			want:      "SELECT * FROM t WHERE hora = '12:30' AND id = @id",
			wantNames: []string{"id"},
		},
		{
			name:      "digits allowed after first character",
			query:     "SELECT * FROM t WHERE c = :p1",
			want:      "SELECT * FROM t WHERE c = @p1",
			wantNames: []string{"p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, names := RewriteNamed(tt.query, at)
			if got != tt.want {
				t.Errorf("rewritten = %q, want %q", got, tt.want)
			}
			if !reflect.DeepEqual(names, tt.wantNames) {
				t.Errorf("names = %v, want %v", names, tt.wantNames)
			}
		})
	}
}
