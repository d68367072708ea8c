// Package plugin loads optional bot extensions compiled as Go plugins.
package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"

	"github.com/bwmarrin/discordgo"
)

// Symbol is the name every plugin exports.
const Symbol = "Plugin"

var (
	ErrNotFound      = errors.New("plugin not found")
	ErrAlreadyLoaded = errors.New("plugin already loaded")
	ErrInvalidFile   = errors.New("not a valid plugin file")
)

type Handler func(session *discordgo.Session, interaction *discordgo.InteractionCreate)

// Registry is what a plugin registers its slash commands with.
type Registry interface {
	AddCommand(cmd *discordgo.ApplicationCommand, handler Handler) error
	RemoveCommand(name string) error
}

type Plugin interface {
	Name() string
	OnLoad() error
	OnUnload() error
	Register(registry Registry) error
	Unregister(registry Registry) error
}

// Describer is implemented by plugins that want a description in /plugin info.
type Describer interface {
	Description() string
}

// Opener turns a plugin file into a Plugin.
type Opener func(path string) (Plugin, error)

// OpenShared opens a .so built with -buildmode=plugin. The exported Plugin
// symbol may be a Plugin value, a pointer to one, or a constructor.
func OpenShared(path string) (Plugin, error) {
	lib, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sym, err := lib.Lookup(Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, err)
	}
	switch v := sym.(type) {
	case Plugin:
		return v, nil
	case *Plugin:
		if *v == nil {
			return nil, fmt.Errorf("%w: nil %s symbol", ErrInvalidFile, Symbol)
		}
		return *v, nil
	case func() Plugin:
		return v(), nil
	default:
		return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidFile, Symbol, sym)
	}
}
