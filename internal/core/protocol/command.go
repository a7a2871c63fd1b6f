package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandName is the discriminator of an outbound command.
type CommandName string

const (
	CommandPause    CommandName = "pause"
	CommandResume   CommandName = "resume"
	CommandStep     CommandName = "step"
	CommandSeek     CommandName = "seek"
	CommandSetSpeed CommandName = "set_speed"
)

// Command is a flat outbound object. Only seek carries a tick and only
// set_speed carries a rate.
type Command struct {
	Name           CommandName `json:"command"`
	Tick           *int64      `json:"tick,omitempty"`
	TicksPerSecond *float64    `json:"ticks_per_second,omitempty"`
}

func Pause() Command  { return Command{Name: CommandPause} }
func Resume() Command { return Command{Name: CommandResume} }
func Step() Command   { return Command{Name: CommandStep} }

func Seek(tick int64) Command {
	return Command{Name: CommandSeek, Tick: &tick}
}

func SetSpeed(ticksPerSecond float64) Command {
	return Command{Name: CommandSetSpeed, TicksPerSecond: &ticksPerSecond}
}

func (c Command) String() string {
	switch {
	case c.Tick != nil:
		return fmt.Sprintf("%s(%d)", c.Name, *c.Tick)
	case c.TicksPerSecond != nil:
		return fmt.Sprintf("%s(%g)", c.Name, *c.TicksPerSecond)
	default:
		return string(c.Name)
	}
}

func (c Command) Validate() error {
	switch c.Name {
	case CommandPause, CommandResume, CommandStep:
		if c.Tick != nil || c.TicksPerSecond != nil {
			return fmt.Errorf("%w: %s takes no arguments", ErrInvalidCommand, c.Name)
		}
	case CommandSeek:
		if c.Tick == nil || c.TicksPerSecond != nil {
			return fmt.Errorf("%w: seek needs exactly a tick", ErrInvalidCommand)
		}
	case CommandSetSpeed:
		if c.TicksPerSecond == nil || c.Tick != nil {
			return fmt.Errorf("%w: set_speed needs exactly ticks_per_second", ErrInvalidCommand)
		}
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, c.Name)
	}
	return nil
}

func EncodeCommand(c Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// DecodeCommand is the server-side counterpart of EncodeCommand.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}
