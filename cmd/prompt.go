package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/ingest"
	"github.com/ykarpov/photodex/internal/resolve"
	"github.com/ykarpov/photodex/internal/worker"
)

// console is the terminal decision surface. It drains the worker inbox on
// the main goroutine and answers each request interactively.
type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole() *console {
	return &console{in: bufio.NewScanner(os.Stdin), out: os.Stdout}
}

// serve answers requests until the run finishes and the inbox closes.
func (c *console) serve(inbox *worker.Inbox) {
	for req := range inbox.Requests() {
		switch payload := req.Payload.(type) {
		case *resolve.PersonPrompt:
			req.Answer(c.personDecision(payload))
		case *resolve.DogPrompt:
			req.Answer(c.dogDecision(payload))
		case *resolve.ReferenceConfirm:
			req.Answer(c.referenceConfirm(payload))
		case *ingest.ReprocessQuestion:
			req.Answer(c.reprocessAnswer(payload))
		default:
			req.Fail(fmt.Errorf("unsupported prompt type %T", payload))
		}
	}
}

func (c *console) readLine() string {
	if !c.in.Scan() {
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *console) askYesNo(question string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	answer := strings.ToLower(c.readLine())
	return answer == "y" || answer == "yes"
}

// saveCrop writes a face crop to a temp file so the user can open it; a
// terminal cannot display the image inline.
func (c *console) saveCrop(crop []byte) string {
	if len(crop) == 0 {
		return ""
	}
	path := filepath.Join(os.TempDir(), "photodex-face.jpg")
	if err := os.WriteFile(path, crop, 0o644); err != nil {
		return ""
	}
	return path
}

func (c *console) personDecision(p *resolve.PersonPrompt) *resolve.PersonDecision {
	fmt.Fprintf(c.out, "\nUnidentified person in %s\n", p.ImagePath)
	fmt.Fprintf(c.out, "  box %v, confidence %.2f\n", p.BBox, p.Confidence)
	if path := c.saveCrop(p.FaceCrop); path != "" {
		fmt.Fprintf(c.out, "  face crop saved to %s\n", path)
	}

	if len(p.Existing) > 0 {
		fmt.Fprintln(c.out, "Known identities:")
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		for i, opt := range p.Existing {
			fmt.Fprintf(w, "  %d\t%s\t%s\n", i+1, opt.FullName, opt.ShortName)
		}
		w.Flush()
	}
	if len(p.Reference) > 0 {
		fmt.Fprintln(c.out, "Reference catalog:")
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		for i, opt := range p.Reference {
			fmt.Fprintf(w, "  r%d\t%s\t%s\n", i+1, opt.FullName, opt.ShortName)
		}
		w.Flush()
	}

	fmt.Fprint(c.out, "Select number, n = new")
	if len(p.Reference) > 0 {
		fmt.Fprint(c.out, ", r<number> = reference")
	}
	if p.AllowLocal {
		fmt.Fprint(c.out, ", l = this image only")
	}
	fmt.Fprint(c.out, ", enter = leave unknown: ")

	input := strings.ToLower(c.readLine())
	switch {
	case input == "":
		return &resolve.PersonDecision{Action: resolve.ActionLeaveUnknown}

	case input == "n":
		fmt.Fprint(c.out, "Full name: ")
		full := c.readLine()
		fmt.Fprint(c.out, "Short name: ")
		short := c.readLine()
		fmt.Fprint(c.out, "Notes: ")
		notes := c.readLine()
		return &resolve.PersonDecision{
			Action:    resolve.ActionNewKnown,
			NewPerson: catalog.Person{FullName: full, ShortName: short, Notes: notes},
		}

	case input == "l" && p.AllowLocal:
		fmt.Fprint(c.out, "Name for this image: ")
		full := c.readLine()
		fmt.Fprint(c.out, "Notes: ")
		notes := c.readLine()
		return &resolve.PersonDecision{
			Action: resolve.ActionLocal,
			Local:  catalog.LocalIdentity{FullName: full, Notes: notes},
		}

	case strings.HasPrefix(input, "r"):
		if n, err := strconv.Atoi(input[1:]); err == nil && n >= 1 && n <= len(p.Reference) {
			return &resolve.PersonDecision{
				Action:      resolve.ActionReference,
				ReferenceID: p.Reference[n-1].ID,
			}
		}

	default:
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(p.Existing) {
			return &resolve.PersonDecision{
				Action:     resolve.ActionExisting,
				ExistingID: p.Existing[n-1].ID,
			}
		}
	}

	fmt.Fprintln(c.out, "Unrecognized input, leaving unknown.")
	return &resolve.PersonDecision{Action: resolve.ActionLeaveUnknown}
}

func (c *console) dogDecision(p *resolve.DogPrompt) *resolve.DogDecision {
	fmt.Fprintf(c.out, "\nUnidentified dog in %s\n", p.ImagePath)
	fmt.Fprintf(c.out, "  box %v, confidence %.2f", p.BBox, p.Confidence)
	if p.Breed != "" {
		fmt.Fprintf(c.out, ", looks like a %s", p.Breed)
	}
	fmt.Fprintln(c.out)

	if len(p.Existing) > 0 {
		fmt.Fprintln(c.out, "Known dogs:")
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		for i, opt := range p.Existing {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", i+1, opt.Name, opt.Breed, opt.Owner)
		}
		w.Flush()
	}

	fmt.Fprint(c.out, "Select number, n = new, enter = leave unknown: ")
	input := strings.ToLower(c.readLine())
	switch {
	case input == "":
		return &resolve.DogDecision{Action: resolve.DogActionLeaveUnknown}

	case input == "n":
		fmt.Fprint(c.out, "Name: ")
		name := c.readLine()
		fmt.Fprintf(c.out, "Breed [%s]: ", p.Breed)
		breed := c.readLine()
		fmt.Fprint(c.out, "Owner: ")
		owner := c.readLine()
		return &resolve.DogDecision{
			Action: resolve.DogActionNewKnown,
			NewDog: catalog.Dog{Name: name, Breed: breed, Owner: owner},
		}

	default:
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(p.Existing) {
			return &resolve.DogDecision{
				Action:     resolve.DogActionExisting,
				ExistingID: p.Existing[n-1].ID,
			}
		}
	}

	fmt.Fprintln(c.out, "Unrecognized input, leaving unknown.")
	return &resolve.DogDecision{Action: resolve.DogActionLeaveUnknown}
}

func (c *console) referenceConfirm(p *resolve.ReferenceConfirm) bool {
	fmt.Fprintf(c.out, "\nPossible match in %s (distance %.3f)\n", p.ImagePath, p.Distance)
	fmt.Fprintf(c.out, "  %s (%s)\n", p.Candidate.FullName, p.Candidate.ShortName)
	if p.Candidate.Notes != "" {
		fmt.Fprintf(c.out, "  %s\n", p.Candidate.Notes)
	}
	if path := c.saveCrop(p.FaceCrop); path != "" {
		fmt.Fprintf(c.out, "  face crop saved to %s\n", path)
	}
	return c.askYesNo("Is this them?")
}

func (c *console) reprocessAnswer(q *ingest.ReprocessQuestion) *ingest.ReprocessAnswer {
	fmt.Fprintf(c.out, "\n%s is already in the catalog.\n", q.Path)
	fmt.Fprint(c.out, "r = reprocess, s = skip, R/S = apply to all remaining: ")
	input := c.readLine()
	switch input {
	case "r":
		return &ingest.ReprocessAnswer{Reprocess: true}
	case "R":
		return &ingest.ReprocessAnswer{Reprocess: true, ApplyToAll: true}
	case "S":
		return &ingest.ReprocessAnswer{Reprocess: false, ApplyToAll: true}
	default:
		return &ingest.ReprocessAnswer{Reprocess: false}
	}
}
