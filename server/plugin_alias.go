package server

import "github.com/dm-vev/alwaysfarm/server/plugin"

type (
	Plugin          = plugin.Plugin
	VersionedPlugin = plugin.VersionedPlugin
	PluginFactory   = plugin.Factory[*Server, Config]
	PluginInfo      = plugin.Info
	PluginAPI       = plugin.API[*Server, Config]
)

var (
	ErrPluginsDisabled    = plugin.ErrDisabled
	ErrPluginNameConflict = plugin.ErrNameConflict
	ErrPluginNameMismatch = plugin.ErrNameMismatch
	ErrPluginNotFound     = plugin.ErrNotFound
)
