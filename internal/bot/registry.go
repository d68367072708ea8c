package bot

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/plugin"
)

type pluginCommand struct {
	command *discordgo.ApplicationCommand
	handler plugin.Handler
}

var _ plugin.Registry = (*Bot)(nil)

func isBuiltin(name string) bool {
	for _, cmd := range builtinCommands() {
		if cmd.Name == name {
			return true
		}
	}
	return false
}

// AddCommand registers a plugin command globally.
func (b *Bot) AddCommand(cmd *discordgo.ApplicationCommand, handler plugin.Handler) error {
	if cmd == nil || cmd.Name == "" {
		return errors.New("plugin command has no name")
	}
	if handler == nil {
		return fmt.Errorf("plugin command %s has no handler", cmd.Name)
	}
	if isBuiltin(cmd.Name) {
		return fmt.Errorf("command %s is built in", cmd.Name)
	}

	b.pluginMu.Lock()
	defer b.pluginMu.Unlock()
	if _, ok := b.pluginCommands[cmd.Name]; ok {
		return fmt.Errorf("command %s already registered", cmd.Name)
	}

	registered := cmd
	if b.session.State != nil && b.session.State.User != nil {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
		registered = created
	}
	b.pluginCommands[cmd.Name] = pluginCommand{command: registered, handler: handler}
	b.logger.Info("plugin command registered", zap.String("command", cmd.Name))
	return nil
}

func (b *Bot) RemoveCommand(name string) error {
	b.pluginMu.Lock()
	defer b.pluginMu.Unlock()

	entry, ok := b.pluginCommands[name]
	if !ok {
		return nil
	}
	delete(b.pluginCommands, name)
	if entry.command.ID == "" || b.session.State == nil || b.session.State.User == nil {
		return nil
	}
	if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, "", entry.command.ID); err != nil {
		return fmt.Errorf("delete command %s: %w", name, err)
	}
	return nil
}

func (b *Bot) pluginHandler(name string) (plugin.Handler, bool) {
	b.pluginMu.RLock()
	defer b.pluginMu.RUnlock()
	entry, ok := b.pluginCommands[name]
	return entry.handler, ok
}

func (b *Bot) pluginApplicationCommands() []*discordgo.ApplicationCommand {
	b.pluginMu.RLock()
	defer b.pluginMu.RUnlock()
	commands := make([]*discordgo.ApplicationCommand, 0, len(b.pluginCommands))
	for _, entry := range b.pluginCommands {
		commands = append(commands, entry.command)
	}
	return commands
}
