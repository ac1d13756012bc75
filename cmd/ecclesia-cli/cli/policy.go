package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
)

// WritePolicy prints the permission matrix. format is table, json or yaml.
func WritePolicy(w io.Writer, policy *rbac.Policy, format string) error {
	if policy == nil {
		return fmt.Errorf("policy cli: policy required")
	}
	snap := policy.Snapshot()
	switch strings.ToLower(format) {
	case "", "table":
		return writeMatrix(w, policy)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("policy cli: unknown format %q", format)
	}
}

// writeMatrix prints one row per permission and one column per role.
func writeMatrix(w io.Writer, policy *rbac.Policy) error {
	roles := rbac.AllRoles()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"PERMISSION"}
	for _, role := range roles {
		header = append(header, string(role))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	clearances := []string{"CLEARANCE"}
	for _, role := range roles {
		clearances = append(clearances, string(policy.ResolveRoleClearance(role)))
	}
	fmt.Fprintln(tw, strings.Join(clearances, "\t"))

	perms := rbac.AllPermissions()
	slices.Sort(perms)
	for _, perm := range perms {
		row := []string{string(perm)}
		for _, role := range roles {
			mark := "-"
			if policy.HasPermission(role, perm) {
				mark = "x"
			}
			row = append(row, mark)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
