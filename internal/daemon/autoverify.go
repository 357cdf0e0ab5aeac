package daemon

import (
	"fmt"
	"os"
	"strings"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// verifyPrefix is the slug prefix of the verify siblings this chain creates
// (<seq>-verify-<parent-slug>), so they can be counted and excluded from
// their own trigger.
const verifyPrefix = "verify-"

// queueAutoVerify creates a verify child spec depending on id, capped at
// cfg.AutoVerifyCap siblings (§4.4 Auto-verify chain). The child's ID is
// <next seq>-verify-<parent slug>: repeated verify siblings of one parent
// differ only in their seq prefix, and no verify-<id> or verify-<id>-N ID
// is produced.
func (d *Daemon) queueAutoVerify(id string) error {
	count, err := d.countVerifySiblings(id)
	if err != nil {
		return err
	}
	if count >= d.cfg.AutoVerifyCap {
		d.log.Infof("auto-verify cap (%d) reached for %s, not queuing another", d.cfg.AutoVerifyCap, id)
		return nil
	}

	// Use the parent's bare slug (seq prefix stripped) so the generated
	// verify spec's own slug starts with "verify-<parent-slug>", matching
	// what countVerifySiblings scans for.
	task := fmt.Sprintf("Verify %s", stripSeqPrefix(id))
	def := models.SpecDef{
		Task:       task,
		ParentTask: id,
		TaskType:   models.TaskVerify,
		Priority:   models.PriorityHigh,
		DependsOn:  []string{id},
	}
	created, err := d.factory.CreateOne(def)
	if err != nil {
		return err
	}
	if err := d.store.AddChild(id, created.ID); err != nil {
		return err
	}
	d.log.Infof("queued auto-verify %s for %s (%d/%d)", created.ID, id, count+1, d.cfg.AutoVerifyCap)
	d.enqueueFromDisk(created.ID, created.Dir)
	return nil
}

// requeueVerifyOnParent is called after a successful error_check closes: it
// queues one more verify attempt against parentID, subject to the same cap.
func (d *Daemon) requeueVerifyOnParent(parentID string) error {
	return d.queueAutoVerify(parentID)
}

// countVerifySiblings counts existing verify-<id>* spec directories so the
// cap can be enforced.
func (d *Daemon) countVerifySiblings(id string) (int, error) {
	entries, err := os.ReadDir(d.cfg.SpecsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	prefix := verifyPrefix + stripSeqPrefix(id)
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := stripSeqPrefix(e.Name())
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n, nil
}

// stripSeqPrefix drops a leading "<3-digit>-" sequence prefix so verify
// chain matching compares slugs, not generated IDs.
func stripSeqPrefix(id string) string {
	if len(id) > 4 && id[3] == '-' {
		allDigits := true
		for i := 0; i < 3; i++ {
			if id[i] < '0' || id[i] > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return id[4:]
		}
	}
	return id
}
