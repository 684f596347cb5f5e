package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// fakeSystemd scripts just enough of systemctl for the controller: a unit
// list, an active flag mutated by start/stop, and optional stuck
// transitions.
type fakeSystemd struct {
	listOutput string
	active     bool
	startStuck bool
	stopStuck  bool
	commands   [][]string
}

func (fake *fakeSystemd) Run(ctx context.Context, name string, args ...string) (string, error) {
	fake.commands = append(fake.commands, append([]string{name}, args...))

	switch args[0] {
	case "list-units":
		return fake.listOutput, nil
	case "is-active":
		if fake.active {
			return "active\n", nil
		}
		return "inactive\n", errors.New("exit status 3")
	case "start":
		if !fake.startStuck {
			fake.active = true
		}
		return "", nil
	case "stop":
		if !fake.stopStuck {
			fake.active = false
		}
		return "", nil
	default:
		return "", errors.New("unexpected systemctl verb")
	}
}

func (fake *fakeSystemd) countVerb(verb string) int {
	count := 0
	for _, command := range fake.commands {
		if len(command) > 1 && command[1] == verb {
			count++
		}
	}
	return count
}

const singleUnit = "sentry-agent.service loaded active running Sentry Monitoring Agent\nsshd.service loaded active running OpenSSH server daemon\n"

func newController(fake *fakeSystemd, recorder *runlog.Recorder) *Controller {
	controller := NewController(fake, "Sentry Monitoring Agent", 20*time.Millisecond, recorder)
	controller.poll = time.Millisecond
	return controller
}

func TestController_Status(t *testing.T) {
	tests := []struct {
		name       string
		listOutput string
		active     bool
		want       agent.ServiceRunState
	}{
		{
			name:       "running",
			listOutput: singleUnit,
			active:     true,
			want:       agent.ServiceRunning,
		},
		{
			name:       "stopped",
			listOutput: strings.ReplaceAll(singleUnit, "active running", "inactive dead"),
			active:     false,
			want:       agent.ServiceStopped,
		},
		{
			name:       "absent",
			listOutput: "sshd.service loaded active running OpenSSH server daemon\n",
			active:     false,
			want:       agent.ServiceNotRegistered,
		},
		{
			name: "ambiguous",
			listOutput: singleUnit +
				"sentry-agent-helper.service loaded active running Sentry Monitoring Agent Helper\n",
			active: true,
			want:   agent.ServiceNotRegistered,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := runlog.NewRecorder()
			fake := &fakeSystemd{listOutput: test.listOutput, active: test.active}

			got := newController(fake, recorder).Status(context.Background())
			assert.Equal(t, test.want, got)

			if test.name == "ambiguous" {
				require.NotEmpty(t, recorder.Entries(), "ambiguous lookup must be recorded")
				assert.Contains(t, recorder.Entries()[0].Message, "ambiguous")
			}
		})
	}
}

func TestController_Start(t *testing.T) {
	fake := &fakeSystemd{listOutput: singleUnit, active: false}
	controller := newController(fake, runlog.NewRecorder())

	require.NoError(t, controller.Start(context.Background()))
	assert.Equal(t, 1, fake.countVerb("start"))
}

func TestController_Start_AlreadyRunning(t *testing.T) {
	fake := &fakeSystemd{listOutput: singleUnit, active: true}
	controller := newController(fake, runlog.NewRecorder())

	require.NoError(t, controller.Start(context.Background()))
	assert.Zero(t, fake.countVerb("start"), "no action when state already matches target")
}

func TestController_Start_Timeout(t *testing.T) {
	fake := &fakeSystemd{listOutput: singleUnit, active: false, startStuck: true}
	controller := newController(fake, runlog.NewRecorder())

	err := controller.Start(context.Background())
	require.ErrorIs(t, err, agent.ErrServiceStartTimeout)
}

func TestController_Start_NotRegistered(t *testing.T) {
	fake := &fakeSystemd{listOutput: ""}
	controller := newController(fake, runlog.NewRecorder())

	err := controller.Start(context.Background())
	require.ErrorIs(t, err, agent.ErrServiceNotFound)
}

func TestController_Stop(t *testing.T) {
	fake := &fakeSystemd{listOutput: singleUnit, active: true}
	controller := newController(fake, runlog.NewRecorder())

	require.NoError(t, controller.Stop(context.Background()))
	assert.Equal(t, 1, fake.countVerb("stop"))
}

func TestController_Stop_AbsentIsStopped(t *testing.T) {
	fake := &fakeSystemd{listOutput: ""}
	controller := newController(fake, runlog.NewRecorder())

	require.NoError(t, controller.Stop(context.Background()))
	assert.Zero(t, fake.countVerb("stop"))
}

func TestController_Stop_Timeout(t *testing.T) {
	fake := &fakeSystemd{listOutput: singleUnit, active: true, stopStuck: true}
	controller := newController(fake, runlog.NewRecorder())

	err := controller.Stop(context.Background())
	require.ErrorIs(t, err, agent.ErrServiceStopTimeout)
}

func TestMatchUnits(t *testing.T) {
	output := singleUnit + "postgresql.service loaded inactive dead PostgreSQL database server\n"

	assert.Equal(t, []string{"sentry-agent.service"}, matchUnits(output, "sentry monitoring"))
	assert.Equal(t, []string{"postgresql.service"}, matchUnits(output, "postgresql"))
	assert.Empty(t, matchUnits(output, "redis"))
	assert.Len(t, matchUnits(output, "service"), 3)
}
