package igdb

import (
	"strconv"
	"strings"
)

// query builds an Apicalypse request body, e.g.
//
//	fields name,summary; where platforms = (6); sort hypes desc; limit 20; offset 0;
type query struct {
	search string
	fields []string
	where  []string
	sort   string
	limit  int
	offset int
}

func newQuery(fields ...string) *query {
	return &query{fields: fields, offset: -1}
}

func (q *query) Search(term string) *query {
	q.search = term
	return q
}

// Where adds a condition. Conditions are joined with "&".
func (q *query) Where(cond string) *query {
	q.where = append(q.where, cond)
	return q
}

func (q *query) Sort(s string) *query {
	q.sort = s
	return q
}

func (q *query) Limit(n int) *query {
	q.limit = n
	return q
}

func (q *query) Offset(n int) *query {
	q.offset = n
	return q
}

func (q *query) String() string {
	var parts []string

	if q.search != "" {
		parts = append(parts, `search "`+escape(q.search)+`";`)
	}
	if len(q.fields) > 0 {
		parts = append(parts, "fields "+strings.Join(q.fields, ",")+";")
	}
	if len(q.where) > 0 {
		parts = append(parts, "where "+strings.Join(q.where, " & ")+";")
	}
	if q.sort != "" {
		parts = append(parts, "sort "+q.sort+";")
	}
	if q.limit > 0 {
		parts = append(parts, "limit "+strconv.Itoa(q.limit)+";")
	}
	if q.offset >= 0 {
		parts = append(parts, "offset "+strconv.Itoa(q.offset)+";")
	}

	return strings.Join(parts, " ")
}

func in(field string, ids ...int64) string {
	s := make([]string, 0, len(ids))
	for _, id := range ids {
		s = append(s, strconv.FormatInt(id, 10))
	}
	return field + " = (" + strings.Join(s, ",") + ")"
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escape(s string) string {
	return escaper.Replace(s)
}
