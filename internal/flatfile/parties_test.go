package flatfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmmo/voxmmo/internal/model"
)

func testPartySnapshot(name, allyName string) model.PartySnapshot {
	leader := model.PartyMember{ID: uuid.New(), Name: "Alice"}
	return model.PartySnapshot{
		Name:         name,
		Leader:       leader,
		Members:      []model.PartyMember{leader, {ID: uuid.New(), Name: "Bob"}},
		Locked:       true,
		PasswordHash: "$2a$10$somehash",
		AllyName:     allyName,
		XPShare:      model.ShareEqual,
		ItemShare:    model.ShareRandom,
		ItemCats:     map[model.ItemShareCategory]bool{model.ItemShareMining: true},
		Level:        3,
		XP:           127.25,
	}
}

func TestPartyStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPartyStore(filepath.Join(t.TempDir(), "parties.txt"))
	in := []model.PartySnapshot{
		testPartySnapshot("Alpha", "Beta"),
		testPartySnapshot("Beta", ""),
	}

	require.NoError(t, store.SaveParties(ctx, in))

	out, err := store.LoadParties(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	alpha := out[0]
	assert.Equal(t, "Alpha", alpha.Name)
	assert.Equal(t, in[0].Leader, alpha.Leader)
	assert.Equal(t, in[0].Members, alpha.Members)
	assert.True(t, alpha.Locked)
	assert.Equal(t, "$2a$10$somehash", alpha.PasswordHash)
	assert.Equal(t, "Beta", alpha.AllyName)
	assert.Equal(t, model.ShareEqual, alpha.XPShare)
	assert.Equal(t, model.ShareRandom, alpha.ItemShare)
	assert.True(t, alpha.ItemCats[model.ItemShareMining])
	assert.False(t, alpha.ItemCats[model.ItemShareLoot])
	assert.Equal(t, int32(3), alpha.Level)
	assert.Equal(t, 127.25, alpha.XP)
}

func TestPartyStore_DelimitersInNamesSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPartyStore(filepath.Join(t.TempDir(), "parties.txt"))

	in := testPartySnapshot("We|ird,Crew", "Al:ly%Guild")
	in.Members[1].Name = "Bo|b,the:Mighty;100%"

	require.NoError(t, store.SaveParties(ctx, []model.PartySnapshot{in}))

	out, err := store.LoadParties(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "We|ird,Crew", out[0].Name)
	assert.Equal(t, "Al:ly%Guild", out[0].AllyName)
	assert.Equal(t, in.Members, out[0].Members)
}

func TestPartyStore_MissingFile(t *testing.T) {
	store := NewPartyStore(filepath.Join(t.TempDir(), "parties.txt"))

	out, err := store.LoadParties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPartyStore_CorruptRecordSkipped(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "parties.txt")
	store := NewPartyStore(path)

	require.NoError(t, store.SaveParties(ctx, []model.PartySnapshot{
		testPartySnapshot("Alpha", ""),
	}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage|record\nBeta|not-a-uuid|x|x|x|x|x|x|x|x|x\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := store.LoadParties(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "corrupt records are skipped, good ones load")
	assert.Equal(t, "Alpha", out[0].Name)
}

func TestPartyStore_LeaderMustBeMember(t *testing.T) {
	ctx := context.Background()
	store := NewPartyStore(filepath.Join(t.TempDir(), "parties.txt"))

	snap := testPartySnapshot("Alpha", "")
	snap.Leader = model.PartyMember{ID: uuid.New(), Name: "Ghost"}

	require.NoError(t, store.SaveParties(ctx, []model.PartySnapshot{snap}))
	out, err := store.LoadParties(ctx)
	require.NoError(t, err)
	assert.Empty(t, out, "a leader outside the roster marks the record corrupt")
}

func TestPartyStore_SaveIsAtomicReplace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "parties.txt")
	store := NewPartyStore(path)

	require.NoError(t, store.SaveParties(ctx, []model.PartySnapshot{
		testPartySnapshot("Alpha", ""),
		testPartySnapshot("Beta", ""),
	}))
	require.NoError(t, store.SaveParties(ctx, []model.PartySnapshot{
		testPartySnapshot("Gamma", ""),
	}))

	out, err := store.LoadParties(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "save replaces the whole collection")
	assert.Equal(t, "Gamma", out[0].Name)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file does not linger")
}
