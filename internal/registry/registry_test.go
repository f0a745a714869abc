package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusiq/opsconsole/internal/domain"
)

func TestResolve(t *testing.T) {
	reg := Campus()

	tests := []struct {
		name  string
		input string
		want  string
		fails bool
	}{
		{"canonical name", "student", "student", false},
		{"plural alias", "students", "student", false},
		{"case and spaces", "  Teachers ", "faculty", false},
		{"financial alias", "fees", "invoice", false},
		{"salary alias", "salaries", "salary_record", false},
		{"unknown", "spaceship", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := reg.Resolve(tt.input)
			if tt.fails {
				var unknown *domain.UnknownEntityError
				require.ErrorAs(t, err, &unknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, schema.Name)
		})
	}
}

func TestFieldChecks(t *testing.T) {
	reg := Campus()
	schema, err := reg.Resolve("student")
	require.NoError(t, err)

	assert.True(t, schema.FilterableField("cgpa"))
	assert.True(t, schema.WritableField("semester"))
	assert.False(t, schema.WritableField("roll_number"))
	assert.False(t, schema.FilterableField("password"))
}

func TestSensitiveEntities(t *testing.T) {
	reg := Campus()
	for _, name := range []string{"user", "invoice", "payment", "salary_record"} {
		schema, err := reg.Resolve(name)
		require.NoError(t, err)
		assert.True(t, schema.Sensitive, "%s should be sensitive", name)
	}
	for _, name := range []string{"student", "course", "attendance"} {
		schema, err := reg.Resolve(name)
		require.NoError(t, err)
		assert.False(t, schema.Sensitive, "%s should not be sensitive", name)
	}
}

func TestMatch(t *testing.T) {
	reg := Campus()

	schema, ok := reg.Match("show all students in CSE")
	require.True(t, ok)
	assert.Equal(t, "student", schema.Name)

	schema, ok = reg.Match("average salary record for faculty")
	require.True(t, ok)
	assert.Equal(t, "salary_record", schema.Name, "longer token wins over salary alias")

	schema, ok = reg.Match("list faculty in the Electronics department")
	require.True(t, ok)
	assert.Equal(t, "faculty", schema.Name, "the earliest mention is the subject")

	schema, ok = reg.Match("show students from the CSE department")
	require.True(t, ok)
	assert.Equal(t, "student", schema.Name)

	_, ok = reg.Match("what is the weather")
	assert.False(t, ok)
}
