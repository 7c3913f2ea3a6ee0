package inventory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

func TestArena_AddAndGet(t *testing.T) {
	t.Parallel()

	a := NewArena()
	n := sampleNode("cobalt production", "cobalt", "CA")
	require.NoError(t, a.AddTemplate(n))

	got, err := a.Get(n.ID)
	require.NoError(t, err)
	assert.Same(t, n, got)
	assert.True(t, a.IsTemplate(n.ID))
	assert.Equal(t, 1, a.Len())

	_, err = a.Get(uuid.New())
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeNodeNotFound))
}

func TestArena_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	a := NewArena()
	n := sampleNode("cobalt production", "cobalt", "CA")
	require.NoError(t, a.Add(n))

	err := a.Add(n)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeDuplicateNode))

	// Same key, different id.
	dup := sampleNode("cobalt production", "cobalt", "CA")
	err = a.Add(dup)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeDuplicateNode))
}

func TestArena_RejectsInvalidNode(t *testing.T) {
	t.Parallel()

	a := NewArena()
	bad := sampleNode("x", "y", "SE")
	bad.Exchanges = nil
	err := a.Add(bad)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeInvalidParam))
	assert.Equal(t, 0, a.Len())
}

func TestArena_Lookup(t *testing.T) {
	t.Parallel()

	a := NewArena()
	n := sampleNode("aluminium production", "aluminium", "NO")
	require.NoError(t, a.Add(n))

	got, ok := a.Lookup(NodeKey{Name: "aluminium production", Product: "aluminium", Location: "NO"})
	require.True(t, ok)
	assert.Same(t, n, got)

	_, ok = a.Lookup(NodeKey{Name: "aluminium production", Product: "aluminium", Location: "IS"})
	assert.False(t, ok)
}

func TestArena_ByProduct(t *testing.T) {
	t.Parallel()

	a := NewArena()
	require.NoError(t, a.Add(sampleNode("aluminium production", "aluminium", "NO")))
	require.NoError(t, a.Add(sampleNode("aluminium production", "aluminium", "IS")))
	require.NoError(t, a.Add(sampleNode("cobalt production", "cobalt", "CD")))

	al := a.ByProduct("aluminium")
	require.Len(t, al, 2)
	assert.Equal(t, "NO", al[0].Location)
	assert.Equal(t, "IS", al[1].Location)
	assert.Empty(t, a.ByProduct("copper"))
}

func TestArena_TemplatesByProductExcludesCreatedNodes(t *testing.T) {
	t.Parallel()

	a := NewArena()
	tmpl := sampleNode("aluminium production", "aluminium", "NO")
	require.NoError(t, a.AddTemplate(tmpl))
	require.NoError(t, a.Add(sampleNode("aluminium production", "aluminium", "IS")))

	tl := a.TemplatesByProduct("aluminium")
	require.Len(t, tl, 1)
	assert.Same(t, tmpl, tl[0])
	assert.Empty(t, a.TemplatesByProduct("copper"))
}

func TestArena_NodesAreSortedAndCreatedExcludesTemplates(t *testing.T) {
	t.Parallel()

	a := NewArena()
	tmpl := sampleNode("aluminium production", "aluminium", "NO")
	require.NoError(t, a.AddTemplate(tmpl))
	require.NoError(t, a.Add(sampleNode("aluminium production", "aluminium", "IS")))
	require.NoError(t, a.Add(sampleNode("cobalt production", "cobalt", "CD")))

	all := a.Nodes()
	require.Len(t, all, 3)
	assert.Equal(t, "IS", all[0].Location) // aluminium before cobalt, IS before NO
	assert.Equal(t, "NO", all[1].Location)
	assert.Equal(t, "cobalt", all[2].Product)

	created := a.Created()
	require.Len(t, created, 2)
	for _, n := range created {
		assert.NotEqual(t, tmpl.ID, n.ID)
	}
}

func TestArena_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	a := NewArena()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := sampleNode(
					fmt.Sprintf("process %d-%d", w, i),
					fmt.Sprintf("product %d", w),
					"SE",
				)
				assert.NoError(t, a.Add(n))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 400, a.Len())
}
