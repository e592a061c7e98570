package pattern

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLike(t *testing.T) {
	tt := []struct {
		template string
		input    string
		matches  bool
	}{
		{"A%", "Alice", true},
		{"A%", "Bob", false},
		{"_o%", "Bob", true},
		{"_o%", "Alice", false},
		{"", "", true},
		{"", "a", false},
		{"%%%%%", "", true},
		{"%", "anything", true},
		{"abc", "abc", true},
		{"abc", "abcd", false},
		{"%ice", "Alice", true},
		{"%lic%", "Alice", true},
		{"%lic%", "Bob", false},
		{"a_c", "abc", true},
		{"a_c", "ac", false},
		{"a_c", "a\nc", true},
		{"%[[_]", "a[b]", false},
		{"++", "+", false},
		{`%\}\%`, "a{}%", true},
		{`100\%`, "100%", true},
		{`100\%`, "1000", false},
		{`a\_b`, "a_b", true},
		{`a\_b`, "axb", false},
		{`trailing\`, `trailing\`, true},
		{"_", "é", true},
		{"__", "é", false},
		{"a.b%", "a.bc", true},
		{"a.b%", "axbc", false},
		{"%(x)%", "((x))", true},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%s~%s", tc.template, tc.input), func(t *testing.T) {
			p := CompileLike(tc.template, false)
			assert.Equal(t, tc.matches, p.Match(tc.input))
		})
	}
}

func TestILike(t *testing.T) {
	p := CompileLike("a%E", true)
	assert.True(t, p.Match("ALICE"))
	assert.True(t, p.Match("alice"))
	assert.False(t, p.Match("Bob"))

	p = CompileLike("BOB", true)
	assert.True(t, p.Match("bob"))

	p = CompileLike("_O_", true)
	assert.True(t, p.Match("bob"))
	assert.False(t, CompileLike("_O_", false).Match("bob"))
}

func TestRegex(t *testing.T) {
	p, err := CompileRegex(`^[A-C]`, false)
	require.NoError(t, err)
	assert.True(t, p.Match("Alice"))
	assert.False(t, p.Match("alice"))
	assert.False(t, p.Match("Dave"))

	p, err = CompileRegex(`^[A-C]`, true)
	require.NoError(t, err)
	assert.True(t, p.Match("alice"))

	// regular expressions are unanchored
	p, err = CompileRegex(`li`, false)
	require.NoError(t, err)
	assert.True(t, p.Match("Alice"))

	// escapes keep their meaning under case folding
	p, err = CompileRegex(`\D+`, true)
	require.NoError(t, err)
	assert.True(t, p.Match("abc"))
	assert.False(t, p.Match("123"))

	_, err = CompileRegex(`(unclosed`, false)
	require.Error(t, err)
}

func TestStartsWith(t *testing.T) {
	assert.True(t, StartsWith("Alice", "Al"))
	assert.True(t, StartsWith("Alice", ""))
	assert.False(t, StartsWith("Alice", "al"))
	assert.False(t, StartsWith("Al", "Alice"))
}

func TestCache(t *testing.T) {
	c := NewCache(0, 0)

	p1 := c.Like("A%", false)
	p2 := c.Like("A%", false)
	require.Same(t, p1, p2)
	require.NotSame(t, p1, c.Like("A%", true))

	r1, err := c.Regex("^a", false)
	require.NoError(t, err)
	r2, err := c.Regex("^a", false)
	require.NoError(t, err)
	require.Same(t, r1, r2)

	_, err = c.Regex("(", false)
	require.Error(t, err)

	stats := c.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(4), stats.Misses)
}

func TestCacheCapacity(t *testing.T) {
	c := NewCache(1, 0)
	c.Like("a%", false)
	p := c.Like("b%", false)
	require.True(t, p.Match("bob"))
	require.Equal(t, 1, c.Stats().Entries)
}

func TestCacheRegexLengthLimit(t *testing.T) {
	c := NewCache(0, 4)
	_, err := c.Regex("abcde", false)
	require.Error(t, err)
	_, err = c.Regex("abcd", false)
	require.NoError(t, err)
}

func TestCacheConcurrent(t *testing.T) {
	c := NewCache(0, 0)
	var wg sync.WaitGroup
	results := make([]*Pattern, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Regex(`[0-9]+`, false)
			if err == nil {
				results[i] = p
			}
		}(i)
	}
	wg.Wait()
	for _, p := range results {
		require.NotNil(t, p)
		require.True(t, p.Match("abc123"))
	}
	require.Equal(t, 1, c.Stats().Entries)
}
