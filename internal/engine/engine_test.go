package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/hansolcho/linkring/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoom = "December Leadership Course"

func uniqueTags(prefix string) []string {
	tags := make([]string, engine.ProfileTagCount)
	for i := range tags {
		tags[i] = fmt.Sprintf("%s-tag-%d", prefix, i)
	}
	return tags
}

// setupRoom opens a room and joins the given participants with complete,
// fully distinct profiles. Returns the engine and a name->id map.
func setupRoom(t *testing.T, names ...string) (*engine.Engine, map[string]string) {
	t.Helper()

	e := engine.NewSeeded(1, 2)
	_, err := e.CreateRoom(testRoom)
	require.NoError(t, err)

	ids := make(map[string]string, len(names))
	for _, name := range names {
		p, err := e.Join(testRoom, name, "Team "+name)
		require.NoError(t, err)
		require.NoError(t, e.SubmitProfile(p.ID, uniqueTags(name)))
		ids[name] = p.ID
	}
	return e, ids
}

func partnersOf(t *testing.T, e *engine.Engine, id string) []string {
	t.Helper()
	room := e.Snapshot()
	require.NotNil(t, room)
	p, ok := room.Participants[id]
	require.True(t, ok)
	return p.Partners
}

func TestCreateRoomAndJoin(t *testing.T) {
	t.Run("join requires an open room", func(t *testing.T) {
		e := engine.New()
		_, err := e.Join("anything", "Kim", "Sales")
		assert.ErrorIs(t, err, engine.ErrNoRoom)
	})

	t.Run("room name must match exactly", func(t *testing.T) {
		e := engine.New()
		_, err := e.CreateRoom(testRoom)
		require.NoError(t, err)

		_, err = e.Join("wrong room", "Kim", "Sales")
		assert.ErrorIs(t, err, engine.ErrRoomMismatch)
	})

	t.Run("join fields are trimmed and required", func(t *testing.T) {
		e := engine.New()
		_, err := e.CreateRoom(testRoom)
		require.NoError(t, err)

		_, err = e.Join(testRoom, "   ", "Sales")
		assert.ErrorIs(t, err, engine.ErrValidation)

		p, err := e.Join("  "+testRoom+"  ", "  Kim  ", " Sales ")
		require.NoError(t, err)
		assert.Equal(t, "Kim", p.Name)
		assert.Equal(t, "Sales", p.Affiliation)
		assert.True(t, p.Online)
	})

	t.Run("completed rooms reject joins", func(t *testing.T) {
		e := engine.New()
		_, err := e.CreateRoom(testRoom)
		require.NoError(t, err)
		_, err = e.Start(0)
		require.NoError(t, err)
		require.NoError(t, e.Complete())

		_, err = e.Join(testRoom, "Kim", "Sales")
		assert.ErrorIs(t, err, engine.ErrRoomClosed)
	})

	t.Run("creating a room discards the previous one", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim")
		_, err := e.CreateRoom("fresh start")
		require.NoError(t, err)

		room := e.Snapshot()
		assert.Equal(t, "fresh start", room.Name)
		assert.Empty(t, room.Participants)
		assert.Equal(t, engine.StatusWaiting, room.Status)
	})
}

func TestSubmitProfile(t *testing.T) {
	e := engine.New()
	_, err := e.CreateRoom(testRoom)
	require.NoError(t, err)
	p, err := e.Join(testRoom, "Kim", "Sales")
	require.NoError(t, err)

	t.Run("rejects short or empty tag lists", func(t *testing.T) {
		assert.ErrorIs(t, e.SubmitProfile(p.ID, []string{"one"}), engine.ErrProfileIncomplete)

		tags := uniqueTags("kim")
		tags[4] = "   "
		assert.ErrorIs(t, e.SubmitProfile(p.ID, tags), engine.ErrProfileIncomplete)

		room := e.Snapshot()
		assert.Empty(t, room.Participants[p.ID].Tags, "failed validation must not write partial state")
	})

	t.Run("replaces the tag list wholesale", func(t *testing.T) {
		require.NoError(t, e.SubmitProfile(p.ID, uniqueTags("first")))
		require.NoError(t, e.SubmitProfile(p.ID, uniqueTags("second")))

		room := e.Snapshot()
		assert.Equal(t, uniqueTags("second"), room.Participants[p.ID].Tags)
		assert.True(t, room.Participants[p.ID].ProfileComplete())
	})

	t.Run("unknown participant", func(t *testing.T) {
		assert.ErrorIs(t, e.SubmitProfile("missing", uniqueTags("x")), engine.ErrNotFound)
	})
}

func TestStart(t *testing.T) {
	t.Run("only from waiting", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim", "Lee")
		_, err := e.Start(0)
		require.NoError(t, err)

		_, err = e.Start(0)
		assert.ErrorIs(t, err, engine.ErrBadStatus)
	})

	t.Run("arms the timer when a duration is given", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim", "Lee")
		before := time.Now()
		_, err := e.Start(20 * time.Minute)
		require.NoError(t, err)

		room := e.Snapshot()
		assert.Equal(t, engine.StatusRunning, room.Status)
		assert.WithinDuration(t, before.Add(20*time.Minute), room.Deadline, time.Second)
	})

	t.Run("runs the first matching pass", func(t *testing.T) {
		e, ids := setupRoom(t, "Kim", "Lee")
		groups, err := e.Start(0)
		require.NoError(t, err)

		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []string{ids["Kim"], ids["Lee"]}, groups[0])
		assert.Equal(t, []string{ids["Lee"]}, partnersOf(t, e, ids["Kim"]))
		assert.Equal(t, []string{ids["Kim"]}, partnersOf(t, e, ids["Lee"]))
	})

	t.Run("skips offline and incomplete participants", func(t *testing.T) {
		e, ids := setupRoom(t, "Kim", "Lee", "Park")
		require.NoError(t, e.SetOnline(ids["Park"], false))

		incomplete, err := e.Join(testRoom, "Choi", "HR")
		require.NoError(t, err)

		groups, err := e.Start(0)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []string{ids["Kim"], ids["Lee"]}, groups[0])
		assert.Empty(t, partnersOf(t, e, ids["Park"]))
		assert.Empty(t, partnersOf(t, e, incomplete.ID))
	})

	t.Run("single eligible participant stays unmatched", func(t *testing.T) {
		e, ids := setupRoom(t, "Kim")
		groups, err := e.Start(0)
		require.NoError(t, err)
		assert.Empty(t, groups)
		assert.Empty(t, partnersOf(t, e, ids["Kim"]))
	})
}

func TestOddPoolTriple(t *testing.T) {
	e, _ := setupRoom(t, "A", "B", "C", "D", "E")
	groups, err := e.Start(0)
	require.NoError(t, err)

	require.Len(t, groups, 2)
	sizes := []int{len(groups[0]), len(groups[1])}
	assert.ElementsMatch(t, []int{3, 2}, sizes)

	// All five covered, and mutually symmetric partner state.
	room := e.Snapshot()
	for _, p := range room.Participants {
		require.NotEmpty(t, p.Partners)
		for _, partnerID := range p.Partners {
			assert.Contains(t, room.Participants[partnerID].Partners, p.ID)
		}
	}
}

func TestComplete(t *testing.T) {
	t.Run("a never-started room cannot complete", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim", "Lee")
		assert.ErrorIs(t, e.Complete(), engine.ErrBadStatus)
		assert.Equal(t, engine.StatusWaiting, e.Snapshot().Status)
	})

	t.Run("completing twice is a no-op", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim", "Lee")
		_, err := e.Start(0)
		require.NoError(t, err)

		require.NoError(t, e.Complete())
		require.NoError(t, e.Complete())
		assert.Equal(t, engine.StatusCompleted, e.Snapshot().Status)
	})
}

// connectRoom starts a room whose participants have no profiles, so the
// automatic pass matches nobody and everyone stays free for hand-picked
// groups.
func connectRoom(t *testing.T, names ...string) (*engine.Engine, map[string]string) {
	t.Helper()

	e := engine.NewSeeded(9, 4)
	_, err := e.CreateRoom(testRoom)
	require.NoError(t, err)

	ids := make(map[string]string, len(names))
	for _, name := range names {
		p, err := e.Join(testRoom, name, "Team "+name)
		require.NoError(t, err)
		ids[name] = p.ID
	}

	_, err = e.Start(0)
	require.NoError(t, err)
	return e, ids
}

func TestConnect(t *testing.T) {
	t.Run("forms a symmetric pair", func(t *testing.T) {
		e, ids := connectRoom(t, "A", "B", "C")
		group, err := e.Connect(ids["A"], []string{ids["B"]})
		require.NoError(t, err)

		assert.Equal(t, []string{ids["A"], ids["B"]}, group)
		assert.Equal(t, []string{ids["B"]}, partnersOf(t, e, ids["A"]))
		assert.Equal(t, []string{ids["A"]}, partnersOf(t, e, ids["B"]))
		assert.Empty(t, partnersOf(t, e, ids["C"]))
	})

	t.Run("forms a triple that scores like any other", func(t *testing.T) {
		e, ids := connectRoom(t, "A", "B", "C")
		_, err := e.Connect(ids["A"], []string{ids["B"], ids["C"]})
		require.NoError(t, err)

		_, err = e.SubmitTraits(ids["B"], []string{"t1", "t2", "t3"})
		require.NoError(t, err)

		room := e.Snapshot()
		for _, name := range []string{"A", "B", "C"} {
			assert.Equal(t, 45, room.Participants[ids[name]].Score)
		}
	})

	t.Run("rejects members already in a match", func(t *testing.T) {
		e, ids := connectRoom(t, "A", "B", "C")
		_, err := e.Connect(ids["A"], []string{ids["B"]})
		require.NoError(t, err)

		_, err = e.Connect(ids["C"], []string{ids["A"]})
		assert.ErrorIs(t, err, engine.ErrAlreadyMatched)
		_, err = e.Connect(ids["A"], []string{ids["C"]})
		assert.ErrorIs(t, err, engine.ErrAlreadyMatched)
	})

	t.Run("validates the partner list", func(t *testing.T) {
		e, ids := connectRoom(t, "A", "B", "C", "D")

		_, err := e.Connect(ids["A"], nil)
		assert.ErrorIs(t, err, engine.ErrValidation)
		_, err = e.Connect(ids["A"], []string{ids["B"], ids["C"], ids["D"]})
		assert.ErrorIs(t, err, engine.ErrValidation)
		_, err = e.Connect(ids["A"], []string{ids["B"], ids["B"]})
		assert.ErrorIs(t, err, engine.ErrValidation)
		_, err = e.Connect(ids["A"], []string{ids["A"]})
		assert.ErrorIs(t, err, engine.ErrValidation)
		_, err = e.Connect(ids["A"], []string{"missing"})
		assert.ErrorIs(t, err, engine.ErrNotFound)

		assert.Empty(t, partnersOf(t, e, ids["A"]), "failed connects must not write match state")
	})

	t.Run("only while running", func(t *testing.T) {
		e, ids := setupRoom(t, "A", "B")
		_, err := e.Connect(ids["A"], []string{ids["B"]})
		assert.ErrorIs(t, err, engine.ErrBadStatus)
	})
}

func TestCheckDeadline(t *testing.T) {
	e, _ := setupRoom(t, "Kim", "Lee")
	_, err := e.Start(10 * time.Minute)
	require.NoError(t, err)

	t.Run("before expiry is a no-op", func(t *testing.T) {
		assert.False(t, e.CheckDeadline(time.Now()))
		assert.Equal(t, engine.StatusRunning, e.Snapshot().Status)
	})

	t.Run("expiry forces completion exactly once", func(t *testing.T) {
		expired := time.Now().Add(11 * time.Minute)
		assert.True(t, e.CheckDeadline(expired))
		assert.Equal(t, engine.StatusCompleted, e.Snapshot().Status)

		// Racing observers see an already-completed room.
		assert.False(t, e.CheckDeadline(expired))
		assert.Equal(t, engine.StatusCompleted, e.Snapshot().Status)
	})
}

func TestRemove(t *testing.T) {
	t.Run("mid-pair removal frees the partner", func(t *testing.T) {
		e, ids := setupRoom(t, "Kim", "Lee")
		_, err := e.Start(0)
		require.NoError(t, err)

		require.NoError(t, e.Remove(ids["Kim"]))

		room := e.Snapshot()
		assert.NotContains(t, room.Participants, ids["Kim"])
		assert.Empty(t, room.Participants[ids["Lee"]].Partners)
	})

	t.Run("mid-triple removal disbands the whole group", func(t *testing.T) {
		e, ids := setupRoom(t, "A", "B", "C")
		_, err := e.Start(0)
		require.NoError(t, err)

		require.NoError(t, e.Remove(ids["A"]))

		room := e.Snapshot()
		assert.Empty(t, room.Participants[ids["B"]].Partners)
		assert.Empty(t, room.Participants[ids["C"]].Partners)
	})

	t.Run("freed partners are rematchable", func(t *testing.T) {
		e, ids := setupRoom(t, "A", "B", "C")
		_, err := e.Start(0)
		require.NoError(t, err)

		require.NoError(t, e.Remove(ids["A"]))
		groups, err := e.Rematch()
		require.NoError(t, err)

		// The two survivors of the disbanded triple pair up again.
		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []string{ids["B"], ids["C"]}, groups[0])
	})

	t.Run("unknown id", func(t *testing.T) {
		e, _ := setupRoom(t, "Kim")
		assert.ErrorIs(t, e.Remove("missing"), engine.ErrNotFound)
	})
}

func TestReset(t *testing.T) {
	e, ids := setupRoom(t, "Kim", "Lee")
	_, err := e.Start(0)
	require.NoError(t, err)
	_, err = e.SubmitTraits(ids["Kim"], []string{"t1", "t2", "t3"})
	require.NoError(t, err)

	room, err := e.Reset()
	require.NoError(t, err)

	assert.Equal(t, testRoom, room.Name)
	assert.Equal(t, engine.StatusWaiting, room.Status)
	assert.Empty(t, room.Participants)
	assert.Empty(t, room.Connections)
}

func TestLeaderboard(t *testing.T) {
	e, ids := setupRoom(t, "A", "B", "C", "D")
	_, err := e.Start(0)
	require.NoError(t, err)

	// Finish A's pair only, leaving the other pair at zero, then check
	// the ordering.
	room := e.Snapshot()
	pairOfA := room.Participants[ids["A"]].Partners[0]
	_, err = e.SubmitTraits(ids["A"], []string{"x", "y", "z"})
	require.NoError(t, err)
	_, err = e.SubmitTraits(pairOfA, []string{"q", "r", "s"})
	require.NoError(t, err)

	board := e.Snapshot().Leaderboard()
	require.Len(t, board, 4)
	assert.Equal(t, 60, board[0].Score)
	assert.Equal(t, 60, board[1].Score)
	assert.Equal(t, 0, board[2].Score)
	assert.True(t, board[0].JoinedAt.Before(board[1].JoinedAt) || board[0].JoinedAt.Equal(board[1].JoinedAt),
		"ties keep join order")
}

func TestSymmetryFuzz(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E", "F", "G"}
	e, ids := setupRoom(t, names...)
	_, err := e.Start(0)
	require.NoError(t, err)

	traits := []string{"t1", "t2", "t3"}
	for cycle := 0; cycle < 25; cycle++ {
		// Finish every open match, then re-partition. A repeat group
		// resolves to its already-finalized connection, so a single
		// submission can clear the whole group; re-read before each.
		for _, id := range ids {
			p := e.Snapshot().Participants[id]
			if len(p.Partners) == 0 {
				continue
			}
			_, err := e.SubmitTraits(id, traits)
			require.NoError(t, err)
		}

		_, err := e.Rematch()
		require.NoError(t, err)

		room := e.Snapshot()
		for _, p := range room.Participants {
			for _, partnerID := range p.Partners {
				partner, ok := room.Participants[partnerID]
				require.True(t, ok, "partner pointer must resolve")
				assert.Contains(t, partner.Partners, p.ID, "match state must be symmetric")
			}
			assert.LessOrEqual(t, len(p.Partners), 2)
		}
	}
}
