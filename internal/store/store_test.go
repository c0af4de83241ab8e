package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearnAccountFillsAcctIDOnce(t *testing.T) {
	s := New()
	u := s.LearnAccount("https://a.example", "@alice", "")
	assert.Empty(t, u.AcctID)
	assert.Equal(t, 0, s.Snapshot().UsersFull)

	u = s.LearnAccount("https://a.example", "@alice", "42")
	assert.Equal(t, "42", u.AcctID)
	assert.Equal(t, 1, s.Snapshot().UsersFull)

	// Re-learning with a different ID never overwrites an already-known one.
	u = s.LearnAccount("https://a.example", "@alice", "99")
	assert.Equal(t, "42", u.AcctID)
	assert.Equal(t, 1, s.Snapshot().UsersFull)
}

func TestLearnSeenBySuppressesSelfEdge(t *testing.T) {
	s := New()
	s.LearnSeenBy("https://a.example", "@alice", "https://a.example", "@alice")
	u, ok := s.GetUser("https://a.example/@alice")
	assert.True(t, ok)
	assert.Empty(t, u.SeenBy)
	assert.Equal(t, 0, s.Snapshot().SeenBy)
}

func TestLearnSeenByDedups(t *testing.T) {
	s := New()
	s.LearnSeenBy("https://b.example", "@bob", "https://a.example", "@alice")
	s.LearnSeenBy("https://b.example", "@bob", "https://a.example", "@alice")
	u, _ := s.GetUser("https://b.example/@bob")
	assert.Len(t, u.SeenBy, 1)
	assert.Equal(t, 1, s.Snapshot().SeenBy)
}

func TestLearnTootEnqueuesExactlyOnce(t *testing.T) {
	s := New()
	s.LearnToot("https://b.example/users/bob/statuses/1", "1", "@bob", "https://b.example", "1", false, 0, 0)
	assert.Equal(t, 1, s.QueueLen())

	s.LearnToot("https://b.example/users/bob/statuses/1", "1", "@bob", "https://b.example", "1", false, 5, 2)
	assert.Equal(t, 1, s.QueueLen(), "rediscovery must not re-enqueue")

	toot, ok := s.GetToot("https://b.example/users/bob/statuses/1")
	assert.True(t, ok)
	assert.False(t, toot.FromThread)
}

func TestLearnTootFlipsFromThreadOnRediscovery(t *testing.T) {
	s := New()
	s.LearnToot("https://b.example/users/bob/statuses/1", "1", "@bob", "https://b.example", "1", false, 0, 0)
	s.LearnToot("https://b.example/users/bob/statuses/1", "1", "@bob", "https://b.example", "1", true, 0, 0)

	toot, _ := s.GetToot("https://b.example/users/bob/statuses/1")
	assert.True(t, toot.FromThread)
}

func TestPopBatchIsFIFOAndBounded(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		uri := "https://b.example/users/bob/statuses/" + string(rune('a'+i))
		s.LearnToot(uri, string(rune('a'+i)), "@bob", "https://b.example", "", false, 0, 0)
	}
	batch := s.PopBatch(3)
	assert.Len(t, batch, 3)
	assert.Equal(t, []string{
		"https://b.example/users/bob/statuses/a",
		"https://b.example/users/bob/statuses/b",
		"https://b.example/users/bob/statuses/c",
	}, batch)
	assert.Equal(t, 2, s.QueueLen())

	rest := s.PopBatch(10)
	assert.Len(t, rest, 2)
	assert.Equal(t, []string{
		"https://b.example/users/bob/statuses/d",
		"https://b.example/users/bob/statuses/e",
	}, rest)
	assert.Equal(t, 0, s.QueueLen())
}

func TestRandomUserKeysHonorsInjectedRNG(t *testing.T) {
	s := New()
	s.LearnAccount("https://a.example", "@alice", "1")
	s.LearnAccount("https://b.example", "@bob", "2")

	always0 := func(n int) int { return 0 }
	keys := s.RandomUserKeys(3, always0)
	assert.Len(t, keys, 2, "sampling never exceeds the number of known users")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	s.LearnInstance("https://a.example")
	s.LearnAccount("https://a.example", "@alice", "1")
	s.LearnSeenBy("https://b.example", "@bob", "https://a.example", "@alice")
	s.LearnToot("https://b.example/users/bob/statuses/1", "1", "@bob", "https://b.example", "1", false, 3, 1)

	path := t.TempDir() + "/state.json"
	assert.NoError(t, s.Save(path))

	reloaded := New()
	assert.NoError(t, reloaded.Load(path))

	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
	toot, ok := reloaded.GetToot("https://b.example/users/bob/statuses/1")
	assert.True(t, ok)
	assert.Equal(t, 3, toot.Favor)
	assert.Equal(t, 1, toot.Related)
}

func TestLoadBytesToleratesLegacyStringlyTypedFields(t *testing.T) {
	legacy := []byte(`{
		"instances": ["https://b.example"],
		"users": [{"instance": "https://b.example", "acct": "@bob", "acct_id": "1"}],
		"toots": [{
			"uri": "https://b.example/users/bob/statuses/1",
			"toot_id": "1",
			"acct": "@bob",
			"favor": "3",
			"related": "1",
			"from_thread": "True"
		}],
		"toots_todo": ["https://b.example/users/bob/statuses/1"]
	}`)

	s := New()
	assert.NoError(t, s.LoadBytes(legacy))

	toot, ok := s.GetToot("https://b.example/users/bob/statuses/1")
	assert.True(t, ok)
	assert.Equal(t, 3, toot.Favor)
	assert.Equal(t, 1, toot.Related)
	assert.True(t, toot.FromThread)
	assert.Equal(t, 1, s.QueueLen())
}
