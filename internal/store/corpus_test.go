package store

import "testing"

func TestCheckReadOnly_Accepts(t *testing.T) {
	queries := []string{
		"SELECT * FROM jobs LIMIT 100",
		"select id, title from jobs where title ilike '%engineer%';",
		"  WITH ranked AS (SELECT * FROM jobs) SELECT * FROM ranked LIMIT 10  ",
		"SELECT * FROM jobs;\n",
		"SELECT id FROM jobs ORDER BY created_at DESC LIMIT 50",
	}
	for _, q := range queries {
		if err := checkReadOnly(q); err != nil {
			t.Errorf("checkReadOnly(%q) = %v, want nil", q, err)
		}
	}
}

func TestCheckReadOnly_Rejects(t *testing.T) {
	queries := []string{
		"",
		"   ",
		"DELETE FROM jobs",
		"UPDATE jobs SET title = 'x'",
		"DROP TABLE jobs",
		"INSERT INTO jobs (title) VALUES ('x')",
		"SELECT 1; DELETE FROM jobs",
		"SELECT 1; SELECT 2",
		"WITH gone AS (DELETE FROM searches RETURNING id) SELECT * FROM gone",
		"WITH w AS (UPDATE searches SET valid = false RETURNING id) SELECT * FROM w",
		"with ins as (insert into jobs (title) values ('x') returning id) select * from ins",
		"SELECT * INTO stolen FROM jobs",
		"CREATE TABLE x AS SELECT * FROM jobs",
	}
	for _, q := range queries {
		if err := checkReadOnly(q); err == nil {
			t.Errorf("checkReadOnly(%q) = nil, want error", q)
		}
	}
}
