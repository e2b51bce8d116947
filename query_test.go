package hindsight_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/hindsight"
)

func TestQueryValidation(t *testing.T) {
	c := newTestClient(t, newMemStore())
	ctx := context.Background()

	for name, q := range map[string]*hindsight.Query{
		"empty channel":  hindsight.NewQuery(""),
		"negative limit": hindsight.NewQuery("storage").Limit(-1),
		"inverted bounds": hindsight.NewQuery("storage").
			Between(baseToken+100, baseToken+10),
		"equal bounds": hindsight.NewQuery("storage").
			Between(baseToken, baseToken),
	} {
		res, err := c.Fetch(ctx, q)
		assert.Nil(t, res, name)
		assert.ErrorIs(t, err, hindsight.ErrBadQuery, name)
	}
}

func TestQueryBuilderChaining(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 30)
	c := newTestClient(t, store)

	res, err := c.Fetch(
		context.Background(),
		hindsight.NewQuery("storage").
			OlderThan(baseToken+210).
			Limit(10).
			WithTimeTokens().
			Reversed(),
	)
	assert.NoError(t, err)
	assert.Len(t, res.Events, 10)
	// newest first, all strictly older than the bound
	assert.Equal(t, baseToken+200, res.Events[0].Token)
	assert.Equal(t, baseToken+110, res.Events[9].Token)
}
