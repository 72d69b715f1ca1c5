package cli

import (
	"fmt"
	"strconv"

	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/subscription"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 快照表格渲染
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// renderResources 渲染资源登记快照
func renderResources(views []lifecycle.View) {
	if len(views) == 0 {
		fmt.Println("  (no tracked resources)")
		return
	}
	table := NewTable("ID", "TYPE", "NAME", "PRIORITY", "OWNER", "FLAGS")
	for _, v := range views {
		owner := "alive"
		if !v.OwnerAlive {
			owner = "gone"
		}
		flags := ""
		if v.Persistent {
			flags = "persistent"
		}
		table.AddRow(v.ID, v.Type, Truncate(v.Name, 32), v.Priority, owner, flags)
	}
	table.Render()
}

// renderSubscriptions 渲染订阅快照
func renderSubscriptions(views []subscription.View) {
	if len(views) == 0 {
		fmt.Println("  (no active subscriptions)")
		return
	}
	table := NewTable("ID", "EVENT", "CATEGORY", "GROUP", "STATUS", "CALLS")
	for _, v := range views {
		table.AddRow(v.ID, Truncate(v.Event, 32), v.Category, v.GroupID, v.Status,
			strconv.FormatInt(v.Invocations, 10))
	}
	table.Render()
}

// renderGroups 渲染订阅分组快照
func renderGroups(views []subscription.GroupView) {
	if len(views) == 0 {
		fmt.Println("  (no groups)")
		return
	}
	table := NewTable("ID", "CLEAR-ON-DISCONNECT", "MEMBERS")
	for _, v := range views {
		table.AddRow(v.ID, strconv.FormatBool(v.ClearOnDisconnect), strconv.Itoa(len(v.Members)))
	}
	table.Render()
}

// renderStats 渲染指标快照，键排序保证输出稳定
func renderStats(stats map[string]float64) {
	if len(stats) == 0 {
		fmt.Println("  (no metrics recorded)")
		return
	}
	table := NewTable("METRIC", "VALUE")
	for _, key := range SortedKeys(stats) {
		table.AddRow(key, strconv.FormatFloat(stats[key], 'f', -1, 64))
	}
	table.Render()
}
