// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shini4i/ddc-brightness-daemon/internal/brightness"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
)

var (
	jsonOutput   bool
	listBackend  string
	listModel    string
	listSerial   string
	tableOffset  uint16
	capsShowVals bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected displays",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := listQueries()
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		infos, err := manager.List(queries...)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), infos)
		}
		return writeDisplayTable(cmd.OutOrStdout(), infos)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print the brightness of a display",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		value, err := manager.GetBrightness(id)
		if err != nil {
			return err
		}

		current, maximum := value.Value(), value.Maximum()
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"id":      id,
				"current": current,
				"maximum": maximum,
				"percent": brightness.Percent(current, maximum),
			})
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d/%d (%d%%)\n", current, maximum, brightness.Percent(current, maximum))
		return err
	},
}

var setCmd = &cobra.Command{
	Use:   "set <id> <level>",
	Short: "Set the brightness of a display",
	Long: `Set the brightness of a display.

The level is an absolute value (30), a percentage of the display's maximum
(50%) or a relative step in raw units (+10, -5) or percent (+10%, -5%).
Relative results are clamped to the display's range.`,
	Example: `  ddc-brightness set 0 70
  ddc-brightness set 1 50%
  ddc-brightness set 0 -- -10%`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		value, err := manager.GetBrightness(id)
		if err != nil {
			return err
		}

		target, err := brightness.ParseLevel(args[1], value.Value(), value.Maximum())
		if err != nil {
			return err
		}
		if err := manager.SetBrightness(id, target); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d/%d (%d%%)\n", target, value.Maximum(), brightness.Percent(target, value.Maximum()))
		return err
	},
}

var vcpCmd = &cobra.Command{
	Use:   "vcp",
	Short: "Read and write raw VCP features",
	Long: `Read and write raw VCP features without consulting the display's
capability string.

Features are given as a hex code (10, 0x10) or an MCCS name (Luminance,
ImageAdjustment.Contrast).`,
}

var vcpGetCmd = &cobra.Command{
	Use:   "get <id> <feature>",
	Short: "Read a VCP feature",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		code, err := parseFeature(args[1])
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		value, err := manager.GetVCPFeature(id, code)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"id":      id,
				"code":    uint8(code),
				"type":    value.Type,
				"current": value.Value(),
				"maximum": value.Maximum(),
			})
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d\n", featureName(code), value.Value(), value.Maximum())
		return err
	},
}

var vcpSetCmd = &cobra.Command{
	Use:   "set <id> <feature> <value>",
	Short: "Write a VCP feature",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		code, err := parseFeature(args[1])
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(args[2], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[2], err)
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		return manager.SetVCPFeature(id, code, uint16(value))
	},
}

var vcpTableCmd = &cobra.Command{
	Use:   "table <id> <feature> <hex-data>",
	Short: "Write table data to a table-type VCP feature",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		code, err := parseFeature(args[1])
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(strings.TrimPrefix(args[2], "0x"))
		if err != nil {
			return fmt.Errorf("invalid table data %q: %w", args[2], err)
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		return manager.SetTableVCPFeature(id, code, data, tableOffset)
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities <id>",
	Aliases: []string{"caps"},
	Short:   "Print the capabilities of a display",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		info, err := manager.Describe(id)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), capabilitiesReport(info))
		}
		return writeCapabilities(cmd.OutOrStdout(), info)
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, getCmd, vcpGetCmd, capabilitiesCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	}

	listCmd.Flags().StringVar(&listBackend, "backend", "", "Only list displays of this backend")
	listCmd.Flags().StringVar(&listModel, "model", "", "Only list displays with this model name")
	listCmd.Flags().StringVar(&listSerial, "serial", "", "Only list displays with this serial number")

	vcpTableCmd.Flags().Uint16Var(&tableOffset, "offset", 0, "Table offset to write at")
	capabilitiesCmd.Flags().BoolVar(&capsShowVals, "values", false, "Print the allowed values of non-continuous features")

	vcpCmd.AddCommand(vcpGetCmd, vcpSetCmd, vcpTableCmd)
}

func listQueries() ([]display.Query, error) {
	var queries []display.Query
	if listBackend != "" {
		b, err := display.ParseBackend(listBackend)
		if err != nil {
			return nil, err
		}
		queries = append(queries, display.ByBackend(b))
	}
	if listModel != "" {
		queries = append(queries, display.ByModelName(listModel))
	}
	if listSerial != "" {
		queries = append(queries, display.BySerialNumber(listSerial))
	}
	return queries, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid display id %q", s)
	}
	return id, nil
}

// parseFeature accepts an MCCS feature name or a hex code with an optional
// 0x prefix.
func parseFeature(s string) (mccs.FeatureCode, error) {
	if code, ok := mccs.Lookup(s); ok {
		return code, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown feature %q", s)
	}
	return mccs.FeatureCode(n), nil
}

func featureName(code mccs.FeatureCode) string {
	if f, ok := mccs.Describe(code); ok {
		return fmt.Sprintf("%s (0x%02x)", f.Name, uint8(code))
	}
	return fmt.Sprintf("0x%02x", uint8(code))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDisplayTable(w io.Writer, infos []display.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tBACKEND\tID\tMANUFACTURER\tMODEL\tSERIAL")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			info.Index, info.Backend, info.ID, orDash(info.ManufacturerID), orDash(info.ModelName), orDash(info.SerialNumber))
	}
	return tw.Flush()
}

type featureReport struct {
	Code   uint8  `json:"code"`
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Values []int  `json:"values,omitempty"`
}

type capabilitiesDocument struct {
	Display  display.Info    `json:"display"`
	Features []featureReport `json:"features"`
}

func capabilitiesReport(info display.Info) capabilitiesDocument {
	doc := capabilitiesDocument{Display: info, Features: []featureReport{}}
	for _, code := range info.Database.Codes() {
		d, _ := info.Database.Get(code)
		report := featureReport{Code: uint8(d.Code), Name: d.Name, Group: string(d.Group)}
		for _, value := range d.Values {
			report.Values = append(report.Values, int(value))
		}
		doc.Features = append(doc.Features, report)
	}
	return doc
}

func writeCapabilities(w io.Writer, info display.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Display:\t%d (%s %s)\n", info.Index, info.Backend, info.ID)
	fmt.Fprintf(tw, "Model:\t%s\n", orDash(info.ModelName))
	fmt.Fprintf(tw, "MCCS version:\t%s\n", orDash(info.MCCSVersion))
	fmt.Fprintln(tw, "Features:")
	for _, code := range info.Database.Codes() {
		d, _ := info.Database.Get(code)
		line := fmt.Sprintf("  0x%02x\t%s", uint8(d.Code), d.Name)
		if capsShowVals && len(d.Values) > 0 {
			line += "\t" + formatValues(d.Values)
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func formatValues(values []byte) string {
	parts := make([]string, len(values))
	for i, b := range values {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
