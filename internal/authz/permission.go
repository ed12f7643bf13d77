package authz

import (
	"fmt"
	"strings"
)

// Permission identifies a single authorizable action.
type Permission string

// User management
const (
	PermManageUsers Permission = "manage_users"
	PermViewUsers   Permission = "view_users"
)

// Content moderation
const (
	PermManagePosts Permission = "manage_posts"
	PermDeletePosts Permission = "delete_posts"
	PermPinPosts    Permission = "pin_posts"
)

// Groups, activities, tasks
const (
	PermManageGroups      Permission = "manage_groups"
	PermDeleteGroups      Permission = "delete_groups"
	PermManageActivities  Permission = "manage_activities"
	PermApproveActivities Permission = "approve_activities"
	PermManageTasks       Permission = "manage_tasks"
	PermVerifyTasks       Permission = "verify_tasks"
)

// Announcements, points, store
const (
	PermManageAnnouncements Permission = "manage_announcements"
	PermManagePoints        Permission = "manage_points"
	PermTransferPoints      Permission = "transfer_points"
	PermManageStore         Permission = "manage_store"
	PermPublishProducts     Permission = "publish_products"
)

// System administration
const (
	PermSystemSettings Permission = "system_settings"
	PermViewLogs       Permission = "view_logs"
)

type permissionInfo struct {
	perm     Permission
	category string
}

var catalogue = []permissionInfo{
	{PermManageUsers, "users"},
	{PermViewUsers, "users"},
	{PermManagePosts, "content"},
	{PermDeletePosts, "content"},
	{PermPinPosts, "content"},
	{PermManageGroups, "groups"},
	{PermDeleteGroups, "groups"},
	{PermManageActivities, "activities"},
	{PermApproveActivities, "activities"},
	{PermManageTasks, "tasks"},
	{PermVerifyTasks, "tasks"},
	{PermManageAnnouncements, "announcements"},
	{PermManagePoints, "points"},
	{PermTransferPoints, "points"},
	{PermManageStore, "store"},
	{PermPublishProducts, "store"},
	{PermSystemSettings, "system"},
	{PermViewLogs, "system"},
}

// Permissions returns the full permission catalogue in declaration order.
func Permissions() []Permission {
	out := make([]Permission, len(catalogue))
	for i, info := range catalogue {
		out[i] = info.perm
	}
	return out
}

// Valid reports whether p is part of the catalogue.
func (p Permission) Valid() bool {
	return p.Category() != ""
}

// Category returns the catalogue group p belongs to, or "" if p is unknown.
func (p Permission) Category() string {
	for _, info := range catalogue {
		if info.perm == p {
			return info.category
		}
	}
	return ""
}

func (p Permission) String() string { return string(p) }

// ParsePermission converts s into a Permission.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}
