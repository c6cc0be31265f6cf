// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package proof

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render - human readable summary of a proof and its verification
func Render(w io.Writer, p *Proof, report *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "document:\t%s\n", p.DocumentID)
	if "" != p.Title {
		fmt.Fprintf(tw, "title:\t%s\n", p.Title)
	}
	fmt.Fprintf(tw, "chain:\t%s\n", p.Chain)
	fmt.Fprintf(tw, "parts:\t%d\n", len(p.Parts))
	fmt.Fprintf(tw, "signatures:\t%d\n", len(p.Signatures))

	for _, b := range p.Bulletins {
		fmt.Fprintf(tw, "bulletin:\t%s\n", b.ID)
		fmt.Fprintf(tw, "  digest:\t%s\n", b.Digest)
		fmt.Fprintf(tw, "  transaction:\t%s\n", b.TransactionHash)
		fmt.Fprintf(tw, "  block:\t%s  height: %d\n", b.BlockHash, b.BlockHeight)
		fmt.Fprintf(tw, "  time:\t%s\n", b.BlockTime.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	if nil != report {
		fmt.Fprintln(tw)
		for _, c := range report.Checks {
			status := "ok"
			if !c.OK {
				status = "FAIL"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", status, c.Name, c.Subject, c.Detail)
		}
		for _, k := range report.Skipped {
			fmt.Fprintf(tw, "skip\t%s\t%s\t%s\n", k.Name, k.Subject, k.Reason)
		}
		if report.OK && report.Complete() {
			fmt.Fprintln(tw, "\nverified")
		} else if report.OK {
			fmt.Fprintf(tw, "\nverified, not checked: %s\n", strings.Join(skippedNames(report), ", "))
		} else {
			fmt.Fprintf(tw, "\nNOT verified: %d failed checks\n", len(report.Failed()))
		}
	}
	return tw.Flush()
}

func skippedNames(report *Report) []string {
	names := make([]string, 0, len(report.Skipped))
	seen := make(map[string]bool)
	for _, k := range report.Skipped {
		if !seen[k.Name] {
			seen[k.Name] = true
			names = append(names, k.Name)
		}
	}
	return names
}
