package regression

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Name    string       `xml:"name,attr"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	SimTimeNS string        `xml:"sim_time_ns,attr"`
	Seed      int64         `xml:"seed,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes the results as a JUnit XML report.
func WriteJUnit(w io.Writer, suite string, results []Result) error {
	_, failures, skipped := Tally(results)

	s := junitSuite{
		Name:     suite,
		Tests:    len(results),
		Failures: failures,
		Skipped:  skipped,
	}

	total := 0.0
	for _, r := range results {
		total += r.RealTime

		c := junitCase{
			Name:      r.Name,
			ClassName: suite,
			Time:      fmt.Sprintf("%.3f", r.RealTime),
			SimTimeNS: fmt.Sprintf("%.2f", r.SimTime.In(sim.NS)),
			Seed:      r.Seed,
		}

		switch r.Status {
		case StatusFail:
			c.Failure = &junitFailure{Message: firstLine(r.Message()), Text: r.Message()}
		case StatusSkip:
			c.Skipped = &struct{}{}
		}

		s.Cases = append(s.Cases, c)
	}

	s.Time = fmt.Sprintf("%.3f", total)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "writing junit report")
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(junitSuites{Name: "all", Suites: []junitSuite{s}}); err != nil {
		return errors.Wrap(err, "writing junit report")
	}

	_, err := io.WriteString(w, "\n")

	return errors.Wrap(err, "writing junit report")
}

// WriteJUnitFile writes the JUnit report to path.
func WriteJUnitFile(path, suite string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating junit report")
	}

	if err := WriteJUnit(f, suite, results); err != nil {
		f.Close()
		return err
	}

	return errors.Wrap(f.Close(), "closing junit report")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}

// Summarize prints a table of the results.
func Summarize(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "TEST\tSTATUS\tSIM TIME (ns)\tREAL TIME (s)\tRATIO (ns/s)")

	simTotal, realTotal := 0.0, 0.0
	for _, r := range results {
		simNS := r.SimTime.In(sim.NS)
		simTotal += simNS
		realTotal += r.RealTime

		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%s\n",
			r.Name, r.Status, simNS, r.RealTime, ratio(simNS, r.RealTime))
	}

	pass, fail, skip := Tally(results)
	fmt.Fprintf(tw, "TESTS=%d PASS=%d FAIL=%d SKIP=%d\t\t%.2f\t%.2f\t%s\n",
		len(results), pass, fail, skip,
		simTotal, realTotal, ratio(simTotal, realTotal))

	return errors.Wrap(tw.Flush(), "writing summary")
}

func ratio(simNS, realSec float64) string {
	if realSec <= 0 {
		return "-"
	}

	return fmt.Sprintf("%.2f", simNS/realSec)
}
