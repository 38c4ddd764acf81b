package executor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want executor.Language
	}{
		{"Python", executor.Python},
		{"py", executor.Python},
		{" python3 ", executor.Python},
		{"C++", executor.CPP},
		{"cpp", executor.CPP},
		{"JAVA", executor.Java},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := executor.ParseLanguage(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLanguage_Unknown(t *testing.T) {
	_, err := executor.ParseLanguage("Rust")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Contains(t, err.Error(), "Rust")
}
