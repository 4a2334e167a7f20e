package room

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/hotpotato/internal/dependencies/mocks"
	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/storage/memory"
	"github.com/mcoot/hotpotato/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	identity   *mocks.MockIdentity
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.identity = mocks.NewMockIdentity()
	s.controller = NewController(s.storage, s.clock, s.random, s.identity, DefaultOptions(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ControllerSuite) withOptions(opts Options) {
	s.controller = NewController(s.storage, s.clock, s.random, s.identity, opts, testutil.NopLogger())
}

func (s *ControllerSuite) join(code model.RoomCode, name string) model.PlayerID {
	res, err := s.controller.Join(s.ctx, code, name)
	s.Require().NoError(err)
	return res.Player.ID
}

func (s *ControllerSuite) room(code model.RoomCode) *model.Room {
	room, err := s.controller.GetRoom(s.ctx, code)
	s.Require().NoError(err)
	return room
}

// startWith starts a round in ABC with Ann (p1) and Ben (p2), holder chosen by index
func (s *ControllerSuite) startWith(holderIdx int, durationFrac float64) (ann, ben model.PlayerID) {
	ann = s.join("ABC", "Ann")
	ben = s.join("ABC", "Ben")
	s.random.QueueIntn(holderIdx)
	s.random.QueueFloat64(durationFrac)
	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	return ann, ben
}

func (s *ControllerSuite) assertInvariants(room *model.Room) {
	s.LessOrEqual(len(room.Players), room.MaxPlayers)
	slots := map[int]bool{}
	hosts := 0
	for _, p := range room.Players {
		s.False(slots[p.PotatoSlot], "duplicate slot %d", p.PotatoSlot)
		slots[p.PotatoSlot] = true
		s.GreaterOrEqual(p.PotatoSlot, 0)
		s.Less(p.PotatoSlot, room.MaxPlayers)
		if p.IsHost {
			hosts++
			s.Equal(room.HostID, p.ID)
		}
	}
	if !room.IsEmpty() {
		s.Equal(1, hosts)
		s.NotNil(room.GetPlayer(room.HostID))
	}
}

// Join tests

func (s *ControllerSuite) TestJoinCreatesRoomWithHost() {
	res, err := s.controller.Join(s.ctx, "ABC123", "Ann")
	s.Require().NoError(err)

	s.True(res.Created)
	s.Equal(model.PlayerID("p1"), res.Player.ID)
	s.True(res.Player.IsHost)
	s.True(res.Player.Connected)
	s.Equal(0, res.Player.PotatoSlot)
	s.Equal(model.PhaseLobby, res.Room.Phase)
	s.Equal(res.Player.ID, res.Room.HostID)

	stored := s.room("ABC123")
	s.Len(stored.Players, 1)
}

func (s *ControllerSuite) TestSecondJoinIsGuestWithNextSlot() {
	s.join("ABC123", "Ann")
	res, err := s.controller.Join(s.ctx, "ABC123", "Ben")
	s.Require().NoError(err)

	s.False(res.Created)
	s.False(res.Player.IsHost)
	s.Equal(1, res.Player.PotatoSlot)
	s.Equal(model.PlayerID("p1"), res.Room.HostID)
	s.assertInvariants(res.Room)
}

func (s *ControllerSuite) TestJoinReusesFreedSlot() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	s.join("ABC", "Cat")
	_, err := s.controller.Leave(s.ctx, "ABC", ben)
	s.Require().NoError(err)

	res, err := s.controller.Join(s.ctx, "ABC", "Dan")
	s.Require().NoError(err)
	s.Equal(1, res.Player.PotatoSlot)
	s.assertInvariants(res.Room)
}

func (s *ControllerSuite) TestJoinValidatesName() {
	for _, name := range []string{"A", "ThisNameIsWayTooLong"} {
		_, err := s.controller.Join(s.ctx, "ABC", name)
		s.ErrorIs(err, model.ErrValidation)
		s.Equal("Player name must be between 2 and 17 characters", model.UserMessage(err))
	}

	exists, _ := s.storage.RoomExists(s.ctx, "ABC")
	s.False(exists, "failed join must not create the room")
}

func (s *ControllerSuite) TestJoinNameLengthCountsCharacters() {
	_, err := s.controller.Join(s.ctx, "ABC", "Zoë")
	s.NoError(err)
	_, err = s.controller.Join(s.ctx, "ABC", strings.Repeat("é", model.MaxNameLength))
	s.NoError(err)
}

func (s *ControllerSuite) TestJoinRequiresFields() {
	_, err := s.controller.Join(s.ctx, "", "Ann")
	s.ErrorIs(err, model.ErrValidation)
	_, err = s.controller.Join(s.ctx, "ABC", "")
	s.ErrorIs(err, model.ErrValidation)
}

func (s *ControllerSuite) TestJoinRejectsLongRoomCode() {
	_, err := s.controller.Join(s.ctx, "ABCDEFGHIJABCDEFGHIJABCDEFGHIJABC", "Ann")
	s.ErrorIs(err, model.ErrValidation)
}

func (s *ControllerSuite) TestJoinFullRoom() {
	for _, name := range []string{"Ann", "Ben", "Cat", "Dan"} {
		s.join("ABC", name)
	}

	_, err := s.controller.Join(s.ctx, "ABC", "Eve")
	s.ErrorIs(err, model.ErrCapacity)
	s.Equal("Room is full (max 4 players)", model.UserMessage(err))
	s.Len(s.room("ABC").Players, 4)
}

func (s *ControllerSuite) TestJoinDuringRound() {
	s.startWith(0, 0.5)

	_, err := s.controller.Join(s.ctx, "ABC", "Cat")
	s.ErrorIs(err, model.ErrPhase)
	s.Equal("Game in progress! Please wait for the next round.", model.UserMessage(err))
}

func (s *ControllerSuite) TestJoinAfterRoundEnded() {
	s.startWith(0, 0)
	s.clock.Advance(10 * time.Second)
	_, err := s.controller.ExpireRounds(s.ctx)
	s.Require().NoError(err)

	_, err = s.controller.Join(s.ctx, "ABC", "Cat")
	s.NoError(err)
}

func (s *ControllerSuite) TestJoinDuplicateName() {
	s.join("ABC", "Ann")

	_, err := s.controller.Join(s.ctx, "ABC", "Ann")
	s.ErrorIs(err, model.ErrDuplicateName)

	_, err = s.controller.Join(s.ctx, "ABC", "ann")
	s.NoError(err, "names are compared exactly")
}

// Leave tests

func (s *ControllerSuite) TestLeaveByHostTransfersAndResets() {
	ann, ben := s.startWith(1, 0.5)

	res, err := s.controller.Leave(s.ctx, "ABC", ann)
	s.Require().NoError(err)

	s.False(res.Deleted)
	s.Require().NotNil(res.NewHost)
	s.Equal(ben, res.NewHost.ID)
	s.Equal("Ann", res.Player.Name)

	room := s.room("ABC")
	s.Equal(ben, room.HostID)
	s.Equal(model.PhaseLobby, room.Phase)
	s.Nil(room.PotatoHolderID)
	s.Nil(room.EndTime)
	s.assertInvariants(room)
}

func (s *ControllerSuite) TestLeaveClearsReadiness() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	cat := s.join("ABC", "Cat")
	_, _, err := s.controller.ToggleReady(s.ctx, "ABC", ben)
	s.Require().NoError(err)

	res, err := s.controller.Leave(s.ctx, "ABC", cat)
	s.Require().NoError(err)
	s.Nil(res.NewHost)

	room := s.room("ABC")
	s.Equal(ann, room.HostID)
	s.False(room.GetPlayer(ben).IsReady)
}

func (s *ControllerSuite) TestLastLeaveDeletesRoom() {
	ann := s.join("ABC", "Ann")

	res, err := s.controller.Leave(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	s.True(res.Deleted)
	s.Nil(res.Room)

	_, err = s.controller.GetRoom(s.ctx, "ABC")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestLeaveUnknownPlayer() {
	s.join("ABC", "Ann")
	_, err := s.controller.Leave(s.ctx, "ABC", "ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.controller.Leave(s.ctx, "NOPE", "ghost")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// ToggleReady tests

func (s *ControllerSuite) TestToggleReadyFlips() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	room, player, err := s.controller.ToggleReady(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	s.True(player.IsReady)
	s.True(room.GetPlayer(ben).IsReady)

	_, player, err = s.controller.ToggleReady(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	s.False(player.IsReady)
	s.False(s.room("ABC").GetPlayer(ben).IsReady)
}

func (s *ControllerSuite) TestToggleReadyByHost() {
	ann := s.join("ABC", "Ann")
	_, _, err := s.controller.ToggleReady(s.ctx, "ABC", ann)
	s.ErrorIs(err, model.ErrRole)
	s.Equal("Host doesn't need to ready up", model.UserMessage(err))
}

// EnterGameRoom tests

func (s *ControllerSuite) TestEnterGameRoomHostOnly() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	room, err := s.controller.EnterGameRoom(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	s.Equal(model.PhaseLobby, room.Phase)

	_, err = s.controller.EnterGameRoom(s.ctx, "ABC", ben)
	s.ErrorIs(err, model.ErrRole)
}

// StartRound tests

func (s *ControllerSuite) TestStartRound() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	s.random.QueueIntn(1)
	s.random.QueueFloat64(0.25)

	res, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.Require().NoError(err)

	s.Equal(ben, res.Holder.ID)
	s.Equal(15*time.Second, res.Duration)
	s.Equal(model.PhasePlaying, res.Room.Phase)

	room := s.room("ABC")
	s.Require().NotNil(room.PotatoHolderID)
	s.Equal(ben, *room.PotatoHolderID)
	s.Require().NotNil(room.EndTime)
	s.Equal(s.clock.Now().Add(15*time.Second), *room.EndTime)
}

func (s *ControllerSuite) TestStartRoundDurationWithinBounds() {
	for _, frac := range []float64{0, 0.5, 0.9999} {
		s.SetupTest()
		ann := s.join("ABC", "Ann")
		s.join("ABC", "Ben")
		s.random.QueueFloat64(frac)

		res, err := s.controller.StartRound(s.ctx, "ABC", ann)
		s.Require().NoError(err)
		s.GreaterOrEqual(res.Duration, 10*time.Second)
		s.Less(res.Duration, 30*time.Second)
		s.Contains([]model.PlayerID{"p1", "p2"}, res.Holder.ID)
	}
}

func (s *ControllerSuite) TestStartRoundNotHost() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	_, err := s.controller.StartRound(s.ctx, "ABC", ben)
	s.ErrorIs(err, model.ErrRole)
	s.Equal(model.PhaseLobby, s.room("ABC").Phase)
}

func (s *ControllerSuite) TestStartRoundNeedsTwoPlayers() {
	ann := s.join("ABC", "Ann")

	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.ErrorIs(err, model.ErrPlayerCount)
	s.Equal("Need at least 2 players to start", model.UserMessage(err))
}

func (s *ControllerSuite) TestStartRoundTwice() {
	ann, _ := s.startWith(0, 0.5)

	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.ErrorIs(err, model.ErrPhase)
}

func (s *ControllerSuite) TestStartRoundIgnoresReadinessByDefault() {
	ann := s.join("ABC", "Ann")
	s.join("ABC", "Ben")

	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.NoError(err)
}

func (s *ControllerSuite) TestStartRoundRequireReady() {
	opts := DefaultOptions()
	opts.RequireReady = true
	s.withOptions(opts)

	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.ErrorIs(err, model.ErrNotReady)

	_, _, err = s.controller.ToggleReady(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	_, err = s.controller.StartRound(s.ctx, "ABC", ann)
	s.NoError(err)
}

func (s *ControllerSuite) TestStartRoundWithCountdown() {
	opts := DefaultOptions()
	opts.Countdown = 3 * time.Second
	s.withOptions(opts)

	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	s.random.QueueIntn(1)
	s.random.QueueFloat64(0.5)

	res, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	s.Equal(model.PhaseCountdown, res.Room.Phase)
	s.Nil(res.Room.EndTime)
	s.Require().NotNil(res.Room.CountdownEndsAt)

	// Not live yet
	live, err := s.controller.GoLive(s.ctx)
	s.Require().NoError(err)
	s.Empty(live)

	_, _, err = s.controller.PassPotato(s.ctx, "ABC", ben, ann)
	s.ErrorIs(err, model.ErrPhase)
	_, err = s.controller.Join(s.ctx, "ABC", "Cat")
	s.ErrorIs(err, model.ErrPhase)

	s.clock.Advance(3 * time.Second)
	live, err = s.controller.GoLive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(live, 1)
	s.Equal(ben, live[0].Holder.ID)
	s.Equal(20*time.Second, live[0].Duration)

	room := s.room("ABC")
	s.Equal(model.PhasePlaying, room.Phase)
	s.Nil(room.CountdownEndsAt)
	s.Require().NotNil(room.EndTime)
	s.Equal(s.clock.Now().Add(20*time.Second), *room.EndTime)
}

// PassPotato tests

func (s *ControllerSuite) TestPassPotato() {
	ann, ben := s.startWith(0, 0.5)

	room, target, err := s.controller.PassPotato(s.ctx, "ABC", ann, ben)
	s.Require().NoError(err)
	s.Equal(ben, target.ID)
	s.True(room.IsHolder(ben))
	s.True(s.room("ABC").IsHolder(ben))
}

func (s *ControllerSuite) TestPassPotatoNotHolder() {
	ann, ben := s.startWith(0, 0.5)

	_, _, err := s.controller.PassPotato(s.ctx, "ABC", ben, ann)
	s.ErrorIs(err, model.ErrAuthority)
	s.True(s.room("ABC").IsHolder(ann), "holder unchanged")
}

func (s *ControllerSuite) TestPassPotatoInvalidTarget() {
	ann, _ := s.startWith(0, 0.5)

	_, _, err := s.controller.PassPotato(s.ctx, "ABC", ann, "ghost")
	s.ErrorIs(err, model.ErrTarget)
	s.True(s.room("ABC").IsHolder(ann))
}

func (s *ControllerSuite) TestPassPotatoInLobby() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	_, _, err := s.controller.PassPotato(s.ctx, "ABC", ann, ben)
	s.ErrorIs(err, model.ErrPhase)
	s.Equal("Game is not active", model.UserMessage(err))
}

// Expiry tests

func (s *ControllerSuite) TestExpireRoundsBeforeDeadline() {
	s.startWith(0, 0.5)
	s.clock.Advance(19 * time.Second)

	ended, err := s.controller.ExpireRounds(s.ctx)
	s.Require().NoError(err)
	s.Empty(ended)
	s.Equal(model.PhasePlaying, s.room("ABC").Phase)
}

func (s *ControllerSuite) TestExpireRoundsLoserIsHolderAtDeadline() {
	ann, ben := s.startWith(0, 0.5)
	_, _, err := s.controller.PassPotato(s.ctx, "ABC", ann, ben)
	s.Require().NoError(err)

	s.clock.Advance(20 * time.Second)
	ended, err := s.controller.ExpireRounds(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(ended, 1)
	s.Require().NotNil(ended[0].Loser)
	s.Equal(ben, ended[0].Loser.ID)

	room := s.room("ABC")
	s.Equal(model.PhaseEnded, room.Phase)
	s.Nil(room.EndTime)
	s.True(room.IsHolder(ben), "loser stays recorded")

	// Already ended rooms are not re-triggered
	ended, err = s.controller.ExpireRounds(s.ctx)
	s.Require().NoError(err)
	s.Empty(ended)
}

func (s *ControllerSuite) TestExpireRoundsOnlyTouchesDueRooms() {
	s.startWith(0, 0)
	dan := s.join("XYZ", "Dan")
	s.join("XYZ", "Eve")
	s.random.QueueFloat64(0.9)
	_, err := s.controller.StartRound(s.ctx, "XYZ", dan)
	s.Require().NoError(err)

	s.clock.Advance(10 * time.Second)
	ended, err := s.controller.ExpireRounds(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(ended, 1)
	s.Equal(model.RoomCode("ABC"), ended[0].Room.Code)
	s.Equal(model.PhasePlaying, s.room("XYZ").Phase)
}

// PlayAgain tests

func (s *ControllerSuite) TestPlayAgain() {
	ann, ben := s.startWith(0, 0)
	s.clock.Advance(10 * time.Second)
	_, _ = s.controller.ExpireRounds(s.ctx)

	s.random.QueueIntn(1)
	s.random.QueueFloat64(1.0 / 4)
	res, err := s.controller.PlayAgain(s.ctx, "ABC", ann)
	s.Require().NoError(err)

	s.Equal(model.PhasePlaying, res.Room.Phase)
	s.Equal(ben, res.Holder.ID)
	s.Require().NotNil(res.Room.EndTime)
	s.Equal(s.clock.Now().Add(15*time.Second), *res.Room.EndTime)
}

func (s *ControllerSuite) TestPlayAgainNotHost() {
	_, ben := s.startWith(0, 0)
	s.clock.Advance(10 * time.Second)
	_, _ = s.controller.ExpireRounds(s.ctx)

	_, err := s.controller.PlayAgain(s.ctx, "ABC", ben)
	s.ErrorIs(err, model.ErrRole)
	s.Equal(model.PhaseEnded, s.room("ABC").Phase)
}

func (s *ControllerSuite) TestPlayAgainWhilePlaying() {
	ann, _ := s.startWith(0, 0.5)

	_, err := s.controller.PlayAgain(s.ctx, "ABC", ann)
	s.ErrorIs(err, model.ErrPhase)
	s.Equal("Game is still in progress", model.UserMessage(err))
}

// Disconnect tests

func (s *ControllerSuite) TestMarkDisconnectedKeepsPlayer() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	room, err := s.controller.MarkDisconnected(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	s.False(room.GetPlayer(ben).Connected)
	s.Len(s.room("ABC").Players, 2)
}

func (s *ControllerSuite) TestRemoveDisconnectedHost() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	s.Require().NotNil(res)
	s.Require().NotNil(res.NewHost)
	s.Equal(ben, res.NewHost.ID)
	s.Equal(ben, s.room("ABC").HostID)
	s.assertInvariants(s.room("ABC"))
}

func (s *ControllerSuite) TestRemoveDisconnectedAlreadyGone() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	_, err := s.controller.Leave(s.ctx, "ABC", ben)
	s.Require().NoError(err)

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", ben)
	s.NoError(err)
	s.Nil(res)

	res, err = s.controller.RemoveDisconnected(s.ctx, "GONE", ben)
	s.NoError(err)
	s.Nil(res)
}

func (s *ControllerSuite) TestRemoveDisconnectedLastPlayerDeletesRoom() {
	ann := s.join("ABC", "Ann")

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", ann)
	s.Require().NoError(err)
	s.True(res.Deleted)

	exists, _ := s.storage.RoomExists(s.ctx, "ABC")
	s.False(exists)
}

func (s *ControllerSuite) TestRemoveDisconnectedHolderPassesPotato() {
	ann := s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")
	cat := s.join("ABC", "Cat")
	s.random.QueueIntn(2, 1) // Cat holds, then Cat's potato goes to index 1 (Ben)
	_, err := s.controller.StartRound(s.ctx, "ABC", ann)
	s.Require().NoError(err)

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", cat)
	s.Require().NoError(err)
	s.Equal(model.PhasePlaying, res.Room.Phase)
	s.True(res.Room.IsHolder(ben))
	s.True(s.room("ABC").IsHolder(ben))
	s.False(res.ReturnedToLobby)
	s.Require().NotNil(res.NewHolder)
	s.Equal(ben, res.NewHolder.ID)
}

func (s *ControllerSuite) TestRemoveDisconnectedTooFewPlayersEndsRound() {
	ann, ben := s.startWith(0, 0.5)

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	s.Equal(model.PhaseLobby, res.Room.Phase)
	s.Nil(res.Room.PotatoHolderID)
	s.Equal(ann, res.Room.HostID)
	s.True(res.ReturnedToLobby)
	s.Nil(res.NewHolder)
}

func (s *ControllerSuite) TestRemoveDisconnectedInLobbyStaysQuiet() {
	s.join("ABC", "Ann")
	ben := s.join("ABC", "Ben")

	res, err := s.controller.RemoveDisconnected(s.ctx, "ABC", ben)
	s.Require().NoError(err)
	s.False(res.ReturnedToLobby)
	s.Nil(res.NewHolder)
}

func (s *ControllerSuite) TestSuggestCodeSkipsLiveRooms() {
	s.join("TAKEN1", "Ann")
	s.random.QueueString("TAKEN1", "FRESH2")

	code, err := s.controller.SuggestCode(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.RoomCode("FRESH2"), code)
}

func (s *ControllerSuite) TestSuggestCodeGivesUp() {
	s.join("TAKEN1", "Ann")
	for range maxSuggestAttempts {
		s.random.QueueString("TAKEN1")
	}

	_, err := s.controller.SuggestCode(s.ctx)
	s.Error(err)
}
