package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Context
		wantErr error
	}{
		{
			name:    "nothing set",
			env:     map[string]string{},
			wantErr: ErrNoContext,
		},
		{
			name: "project only",
			env:  map[string]string{ProjectIDEnv: "42", ProjectEnv: "Tales"},
			want: &Context{Project: &models.Project{ID: 42, Title: "Tales"}},
		},
		{
			name: "task name",
			env:  map[string]string{ProjectIDEnv: "42", TaskEnv: "layout"},
			want: &Context{Project: &models.Project{ID: 42}, Task: &models.Task{Name: "layout"}},
		},
		{
			name: "task id and name",
			env:  map[string]string{ProjectIDEnv: " 7 ", TaskEnv: "12:anim"},
			want: &Context{Project: &models.Project{ID: 7}, Task: &models.Task{ID: 12, Name: "anim"}},
		},
		{
			name: "colon without id",
			env:  map[string]string{ProjectIDEnv: "7", TaskEnv: "fx:smoke"},
			want: &Context{Project: &models.Project{ID: 7}, Task: &models.Task{Name: "fx:smoke"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(env(tt.env))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupInvalidProjectID(t *testing.T) {
	_, err := Lookup(env(map[string]string{ProjectIDEnv: "tales"}))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoContext)
}

func TestRequireTask(t *testing.T) {
	_, err := RequireTask(Lookup(env(map[string]string{ProjectIDEnv: "1"})))
	assert.ErrorIs(t, err, ErrNoTask)

	_, err = RequireTask(Lookup(env(map[string]string{})))
	assert.ErrorIs(t, err, ErrNoContext)

	ctx, err := RequireTask(Lookup(env(map[string]string{ProjectIDEnv: "1", TaskEnv: "anim"})))
	require.NoError(t, err)
	assert.Equal(t, "anim", ctx.Task.Name)
}

func TestEnvRoundTrip(t *testing.T) {
	ctx := &Context{Project: &models.Project{ID: 3, Title: "Cars"}, Task: &models.Task{ID: 9, Name: "lookdev"}}
	assert.Equal(t, []string{"BD_PROJECT_ID=3", "BD_PROJECT=Cars", "BD_TASK=9:lookdev"}, ctx.Env())

	values := map[string]string{}
	for _, kv := range ctx.Env() {
		key, value, _ := strings.Cut(kv, "=")
		values[key] = value
	}
	got, err := Lookup(env(values))
	require.NoError(t, err)
	assert.Equal(t, ctx, got)
}
