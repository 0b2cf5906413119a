package spine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookpress/internal/failure"
)

func TestResolve_FixedMembersFollowPresence(t *testing.T) {
	items, err := Resolve([]string{"part1", "chapter1", "chapter2"}, Presence{TOC: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"nav", "part1", "chapter1", "chapter2"}, items)

	items, err = Resolve([]string{"ch01"}, Presence{Cover: true, TitlePage: true, TOC: true, Preamble: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"cover", "titlepage", "nav", "preamble", "ch01"}, items)

	items, err = Resolve([]string{"ch01", "ch02", "ch03"}, Presence{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ch01", "ch02", "ch03"}, items)
}

func TestResolve_KeepsInclusionOrder(t *testing.T) {
	includes := []string{"zeta", "alpha", "mid"}
	for range 5 {
		items, err := Resolve(includes, Presence{TOC: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"nav", "zeta", "alpha", "mid"}, items)
	}
}

func TestResolve_DuplicateIsConsistencyError(t *testing.T) {
	_, err := Resolve([]string{"ch01", "ch01"}, Presence{})
	require.Error(t, err)
	assert.Equal(t, failure.Consistency, failure.KindOf(err))

	_, err = Resolve([]string{"nav"}, Presence{TOC: true})
	require.Error(t, err)
}

func TestContent(t *testing.T) {
	assert.Equal(t, []string{"part1", "ch01"}, Content([]string{"cover", "nav", "part1", "preamble", "ch01"}))
}

func TestInspect(t *testing.T) {
	markup := `<!DOCTYPE html><html><head><title>x</title></head><body data-type="book">
<div data-type="cover"><img src="cover.png"/></div>
<nav data-type="toc"><ol></ol></nav>
<section data-type="chapter"><h1>One</h1><section data-type="preamble"></section></section>
</body></html>`
	p, err := Inspect(markup)
	require.NoError(t, err)
	assert.Equal(t, Presence{Cover: true, TOC: true}, p)
}
