package utils

import "strings"

// channelPermissionBits is an ordered list of permission bits and their display names.
var channelPermissionBits = []struct {
	Bit  int64
	Name string
}{
	{1 << 0, "Create Invite"},
	{1 << 1, "Kick Members"},
	{1 << 2, "Ban Members"},
	{1 << 3, "Administrator"},
	{1 << 4, "Manage Channels"},
	{1 << 5, "Manage Server"},
	{1 << 6, "Add Reactions"},
	{1 << 7, "View Audit Log"},
	{1 << 8, "Priority Speaker"},
	{1 << 9, "Video"},
	{1 << 10, "View Channel"},
	{1 << 11, "Send Messages"},
	{1 << 12, "Send TTS Messages"},
	{1 << 13, "Manage Messages"},
	{1 << 14, "Embed Links"},
	{1 << 15, "Attach Files"},
	{1 << 16, "Read Message History"},
	{1 << 17, "Mention Everyone"},
	{1 << 18, "Use External Emojis"},
	{1 << 20, "Connect"},
	{1 << 21, "Speak"},
	{1 << 22, "Mute Members"},
	{1 << 23, "Deafen Members"},
	{1 << 24, "Move Members"},
	{1 << 25, "Use Voice Activity"},
	{1 << 26, "Change Nickname"},
	{1 << 27, "Manage Nicknames"},
	{1 << 28, "Manage Permissions"},
	{1 << 29, "Manage Webhooks"},
	{1 << 30, "Manage Emojis"},
	{1 << 31, "Use Application Commands"},
	{1 << 34, "Manage Threads"},
	{1 << 35, "Create Public Threads"},
	{1 << 36, "Create Private Threads"},
	{1 << 38, "Send Messages in Threads"},
}

// PermissionNames lists the known permission bits set in mask, lowest bit first.
func PermissionNames(mask int64) []string {
	var names []string
	for _, p := range channelPermissionBits {
		if mask&p.Bit != 0 {
			names = append(names, p.Name)
		}
	}
	return names
}

// PrettyPermissions renders mask for humans, "None" when no known bit is set.
func PrettyPermissions(mask int64) string {
	names := PermissionNames(mask)
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}
