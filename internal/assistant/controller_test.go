package assistant_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/voicememo/internal/assistant"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
	"github.com/xaenox/voicememo/internal/storage"
	"github.com/xaenox/voicememo/internal/storage/mocks"
	"go.uber.org/zap"
)

// Wednesday afternoon
var now = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC)
}

type mockBrain struct {
	mock.Mock
}

func (m *mockBrain) ClassifyIntent(ctx context.Context, utterance string, convCtx models.ConversationContext, recent []models.Message) (models.DetectedIntent, error) {
	args := m.Called(ctx, utterance, convCtx, recent)
	return args.Get(0).(models.DetectedIntent), args.Error(1)
}

func (m *mockBrain) GenerateResponse(ctx context.Context, utterance string, intent models.DetectedIntent, data string, convCtx models.ConversationContext) (string, error) {
	args := m.Called(ctx, utterance, intent, data, convCtx)
	return args.String(0), args.Error(1)
}

func (m *mockBrain) SummarizeDay(ctx context.Context, reminders []models.VoiceReminder, sessions []models.Session) (string, error) {
	args := m.Called(ctx, reminders, sessions)
	return args.String(0), args.Error(1)
}

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

type fixture struct {
	ctrl    *assistant.Controller
	brain   *mockBrain
	backend *storage.MemoryStorage
	speaker *recordingSpeaker
	jane    models.Client
	amir    models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := storage.NewMemoryStorage()
	jane := backend.AddClient(models.Client{Name: "Jane Doe", RiskLevel: "high", CreatedAt: at(1, 9)})
	amir := backend.AddClient(models.Client{Name: "Amir Khan", CreatedAt: at(1, 9)})

	backend.AddSession(models.Session{ID: "s-today", ClientID: jane.ID, StartsAt: at(14, 10), EndsAt: at(14, 11), Status: "completed"})
	backend.AddSession(models.Session{ID: "s-tomorrow", ClientID: amir.ID, StartsAt: at(15, 11), EndsAt: at(15, 12)})
	backend.AddSession(models.Session{ID: "s-next-week", ClientID: jane.ID, StartsAt: at(20, 9), EndsAt: at(20, 10)})
	backend.AddNote(models.Note{ClientID: jane.ID, Content: "Worked on grounding exercises.", CreatedAt: at(14, 11)})

	f := &fixture{brain: &mockBrain{}, backend: backend, speaker: &recordingSpeaker{}, jane: jane, amir: amir}
	f.ctrl = assistant.NewController(f.brain, backend, nil, f.speaker, zap.NewNop()).
		WithClock(func() time.Time { return now })
	return f
}

func TestSubmit_EmptyInputIsIgnored(t *testing.T) {
	f := newFixture(t)

	_, ok := f.ctrl.Submit(context.Background(), "   ")
	assert.False(t, ok)
	assert.Empty(t, f.ctrl.Conversation().Messages)
	assert.Empty(t, f.speaker.spoken)
	f.brain.AssertNotCalled(t, "ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_ScheduleTomorrowInferred(t *testing.T) {
	f := newFixture(t)
	utterance := "What's on my schedule tomorrow?"

	f.brain.On("ClassifyIntent", mock.Anything, utterance, mock.Anything, mock.Anything).
		Return(models.DetectedIntent{Action: models.ActionGetSchedule}, nil).Once()
	f.brain.On("GenerateResponse", mock.Anything, utterance,
		mock.MatchedBy(func(in models.DetectedIntent) bool {
			return in.Time != nil && in.Time.Kind() == models.TimeTomorrow
		}),
		mock.MatchedBy(func(data string) bool {
			return strings.Contains(data, "Amir Khan") && !strings.Contains(data, "Jane Doe")
		}),
		mock.Anything).
		Return("You have one session tomorrow, with Amir Khan at 11.", nil).Once()

	reply, ok := f.ctrl.Submit(context.Background(), utterance)
	require.True(t, ok)
	assert.Equal(t, "You have one session tomorrow, with Amir Khan at 11.", reply.Text)
	require.NotNil(t, reply.Intent)
	assert.Equal(t, models.ActionGetSchedule, reply.Intent.Action)

	conv := f.ctrl.Conversation()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, []string{reply.Text}, f.speaker.spoken)
	f.brain.AssertExpectations(t)
}

func TestExecute_ScheduleWindow(t *testing.T) {
	f := newFixture(t)
	tomorrow, err := models.NewTimeReference(models.TimeTomorrow)
	require.NoError(t, err)

	res, err := f.ctrl.Execute(context.Background(),
		models.DetectedIntent{Action: models.ActionGetSchedule, Time: &tomorrow}, "", models.ConversationContext{})
	require.NoError(t, err)

	sched, ok := res.(assistant.Schedule)
	require.True(t, ok)
	assert.Equal(t, at(15, 0), sched.Start)
	assert.Equal(t, at(16, 0), sched.End)
	require.Len(t, sched.Sessions, 1)
	assert.Equal(t, "s-tomorrow", sched.Sessions[0].ID)

	// no time at all means today
	res, err = f.ctrl.Execute(context.Background(), models.DetectedIntent{Action: models.ActionGetSchedule}, "", models.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, at(14, 0), res.(assistant.Schedule).Start)
}

func TestExecute_Actions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	none := models.ConversationContext{}

	res, err := f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionNextAppointment}, "", none)
	require.NoError(t, err)
	assert.Equal(t, "s-tomorrow", res.(assistant.Appointment).Session.ID)

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionNextAppointment, EntityName: "Jane"}, "", none)
	require.NoError(t, err)
	assert.Equal(t, "s-next-week", res.(assistant.Appointment).Session.ID)

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionClientHistory, EntityName: "jane doe"}, "", none)
	require.NoError(t, err)
	hist := res.(assistant.History)
	assert.Equal(t, f.jane.ID, hist.Client.ID)
	assert.Len(t, hist.Sessions, 2)

	last, _ := models.NewTimeReference(models.TimeLastSession)
	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionClientHistory, EntityName: "Jane", Time: &last}, "", none)
	require.NoError(t, err)
	require.Len(t, res.(assistant.History).Sessions, 1)
	assert.Equal(t, "s-today", res.(assistant.History).Sessions[0].ID)

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionClientInfo, EntityName: "Amir"}, "", none)
	require.NoError(t, err)
	info := res.(assistant.ClientInfo)
	assert.Equal(t, "Amir Khan", info.Client.Name)
	require.NotNil(t, info.Upcoming)
	assert.Equal(t, "s-tomorrow", info.Upcoming.ID)

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionListClients}, "", none)
	require.NoError(t, err)
	assert.Len(t, res.(assistant.ClientList).Clients, 2)

	// pronoun resolved through the previous turn's client
	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionSessionNotes}, "", models.ConversationContext{LastClientName: "Jane Doe"})
	require.NoError(t, err)
	notes := res.(assistant.Notes)
	require.Len(t, notes.Notes, 1)

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionSessionPrep, EntityName: "Jane"}, "", none)
	require.NoError(t, err)
	prep := res.(assistant.Prep)
	assert.Equal(t, "s-next-week", prep.Session.ID)
	assert.Contains(t, prep.Prep.Summary, "grounding")

	res, err = f.ctrl.Execute(ctx, models.DetectedIntent{Action: models.ActionUnknown}, "sing a song", none)
	require.NoError(t, err)
	assert.IsType(t, assistant.NoData{}, res)
}

func TestExecute_UnmatchedClientYieldsNoData(t *testing.T) {
	f := newFixture(t)
	for _, action := range []models.IntentAction{
		models.ActionClientHistory,
		models.ActionClientInfo,
		models.ActionSessionNotes,
		models.ActionSessionPrep,
		models.ActionNextAppointment,
	} {
		res, err := f.ctrl.Execute(context.Background(),
			models.DetectedIntent{Action: action, EntityName: "Zelda"}, "", models.ConversationContext{})
		require.NoError(t, err, action)
		assert.IsType(t, assistant.NoData{}, res, action)
		assert.Empty(t, assistant.Describe(res))
	}

	res, err := f.ctrl.Execute(context.Background(),
		models.DetectedIntent{Action: models.ActionClientInfo}, "", models.ConversationContext{})
	require.NoError(t, err)
	assert.IsType(t, assistant.NoData{}, res)
}

func TestExecute_CreateReminder(t *testing.T) {
	f := newFixture(t)
	tomorrow, _ := models.NewTimeReference(models.TimeTomorrow)

	res, err := f.ctrl.Execute(context.Background(),
		models.DetectedIntent{Action: models.ActionCreateReminder, EntityName: "Amir", Time: &tomorrow},
		"Remind me to send Amir the intake form tomorrow", models.ConversationContext{})
	require.NoError(t, err)

	created := res.(assistant.ReminderCreated)
	assert.Equal(t, f.amir.ID, created.Record.ClientID)
	require.NotNil(t, created.Record.DueAt)
	assert.Equal(t, at(15, 0), *created.Record.DueAt)

	records := f.backend.ReminderRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "Remind me to send Amir the intake form tomorrow", records[0].Text)
}

func TestExecute_DailySummary(t *testing.T) {
	f := newFixture(t)
	f.brain.On("SummarizeDay", mock.Anything, mock.Anything,
		mock.MatchedBy(func(s []models.Session) bool { return len(s) == 1 && s[0].ID == "s-today" })).
		Return("One session today with Jane.", nil).Once()

	res, err := f.ctrl.Execute(context.Background(), models.DetectedIntent{Action: models.ActionDailySummary}, "", models.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, assistant.Summary{Text: "One session today with Jane."}, res)
	f.brain.AssertExpectations(t)
}

func TestSubmit_FailureBecomesSpokenApology(t *testing.T) {
	f := newFixture(t)
	f.brain.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.UnknownIntent(), errs.ErrRateLimited).Once()

	reply, ok := f.ctrl.Submit(context.Background(), "Who is next?")
	require.True(t, ok)
	assert.Contains(t, reply.Text, "Sorry")
	assert.Contains(t, reply.Text, "rate limited")
	assert.Nil(t, reply.Intent)

	assert.Len(t, f.ctrl.Conversation().Messages, 2)
	assert.Equal(t, []string{reply.Text}, f.speaker.spoken)
}

func TestSubmit_BackendFailureBecomesApology(t *testing.T) {
	backend := &mocks.Backend{}
	backend.On("ListClients", mock.Anything).Return(nil, errs.ErrNetworkFailure)

	brain := &mockBrain{}
	brain.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.DetectedIntent{Action: models.ActionListClients}, nil).Once()

	speaker := &recordingSpeaker{}
	ctrl := assistant.NewController(brain, backend, nil, speaker, zap.NewNop())

	reply, ok := ctrl.Submit(context.Background(), "List my clients")
	require.True(t, ok)
	assert.Contains(t, reply.Text, "network failure")
	require.NotNil(t, reply.Intent)
	assert.Equal(t, models.ActionListClients, ctrl.Conversation().Context.LastIntent.Action)
	assert.Len(t, speaker.spoken, 1)
	brain.AssertNotCalled(t, "GenerateResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_ContextCarriesClient(t *testing.T) {
	f := newFixture(t)

	f.brain.On("ClassifyIntent", mock.Anything, "Tell me about Jane", models.ConversationContext{}, mock.Anything).
		Return(models.DetectedIntent{Action: models.ActionClientInfo, EntityName: "Jane"}, nil).Once()
	f.brain.On("GenerateResponse", mock.Anything, "Tell me about Jane", mock.Anything, mock.Anything, mock.Anything).
		Return("Jane Doe is a high-risk client.", nil).Once()

	_, ok := f.ctrl.Submit(context.Background(), "Tell me about Jane")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", f.ctrl.Conversation().Context.LastClientName)

	f.brain.On("ClassifyIntent", mock.Anything, "When did I last see her?",
		mock.MatchedBy(func(c models.ConversationContext) bool {
			return c.LastClientName == "Jane Doe" && c.LastIntent != nil && c.LastIntent.Action == models.ActionClientInfo
		}),
		mock.MatchedBy(func(recent []models.Message) bool { return len(recent) == 2 })).
		Return(models.DetectedIntent{Action: models.ActionClientHistory, EntityName: "Jane Doe"}, nil).Once()
	f.brain.On("GenerateResponse", mock.Anything, "When did I last see her?", mock.Anything, mock.Anything, mock.Anything).
		Return("You saw Jane this morning.", nil).Once()

	reply, ok := f.ctrl.Submit(context.Background(), "When did I last see her?")
	require.True(t, ok)
	assert.Equal(t, "You saw Jane this morning.", reply.Text)
	f.brain.AssertExpectations(t)
}

func TestClearAndEnd(t *testing.T) {
	f := newFixture(t)
	f.brain.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.DetectedIntent{Action: models.ActionListClients}, nil)
	f.brain.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("You have two clients.", nil)

	first := f.ctrl.Conversation().ID
	f.ctrl.Submit(context.Background(), "List clients")

	var published []models.Conversation
	f.ctrl.Subscribe(func(c models.Conversation) { published = append(published, c) })

	f.ctrl.Clear()
	conv := f.ctrl.Conversation()
	assert.NotEqual(t, first, conv.ID)
	assert.Empty(t, conv.Messages)
	assert.Nil(t, conv.Context.LastIntent)
	require.Len(t, published, 1)

	f.ctrl.End()
	ended := f.ctrl.Conversation()
	assert.False(t, ended.Active)
	require.NotNil(t, ended.EndedAt)

	f.ctrl.Submit(context.Background(), "List clients")
	after := f.ctrl.Conversation()
	assert.True(t, after.Active)
	assert.NotEqual(t, ended.ID, after.ID)
	assert.Len(t, after.Messages, 2)
}

func TestSubmit_ReplyGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.brain.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.DetectedIntent{Action: models.ActionListClients}, nil)
	f.brain.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("boom")).Once()

	reply, _ := f.ctrl.Submit(context.Background(), "List clients")
	assert.Contains(t, reply.Text, "boom")
}

func TestSubmit_ClearDuringTurnKeepsNewConversationEmpty(t *testing.T) {
	f := newFixture(t)
	first := f.ctrl.Conversation().ID

	f.brain.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { f.ctrl.Clear() }).
		Return(models.DetectedIntent{Action: models.ActionClientInfo, EntityName: "Jane"}, nil).Once()
	f.brain.On("GenerateResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("Jane Doe is a high-risk client.", nil).Once()

	reply, ok := f.ctrl.Submit(context.Background(), "Tell me about Jane")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe is a high-risk client.", reply.Text)

	conv := f.ctrl.Conversation()
	assert.NotEqual(t, first, conv.ID)
	assert.Empty(t, conv.Messages)
	assert.Nil(t, conv.Context.LastIntent)
	assert.Empty(t, conv.Context.LastClientName)
	assert.Empty(t, f.speaker.spoken)
}
