package stepstate

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/status"
)

// Scheduler names the grid batch scheduler a GridBackend submits to.
type Scheduler string

const (
	SchedulerGridEngine Scheduler = "gridengine"
	SchedulerSlurm      Scheduler = "slurm"
)

// GridBackend submits one map item per task as a batch job to a grid
// scheduler over SSH, generating a submission script from the step's
// selected method the same way LocalShellBackend builds a command line,
// but wrapping qsub/sbatch around it instead of running it directly.
type GridBackend struct {
	Scheduler Scheduler
	SSH       datamgr.SSHCtx
	App       *definition.App
	WorkDir   string // remote directory submission scripts and logs land in
}

func (b *GridBackend) Context() string {
	if b.Scheduler == SchedulerSlurm {
		return "slurm"
	}
	return "gridengine"
}

func (b *GridBackend) dial() (*ssh.Client, error) {
	cb := b.SSH.HostKeyCB
	if cb == nil {
		cb = ssh.InsecureIgnoreHostKey()
	}
	config := &ssh.ClientConfig{
		User:            b.SSH.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(b.SSH.Signer)},
		HostKeyCallback: cb,
	}
	addr := net.JoinHostPort(b.SSH.Host, strconv.Itoa(b.SSH.Port))
	return ssh.Dial("tcp", addr, config)
}

func (b *GridBackend) exec(cli *ssh.Client, command string) (string, error) {
	session, err := cli.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(command); err != nil {
		return "", fmt.Errorf("%s: %w: %s", command, err, stderr.String())
	}
	return stdout.String(), nil
}

func (b *GridBackend) submitCommand(scriptPath string) string {
	if b.Scheduler == SchedulerSlurm {
		return "sbatch --parsable " + scriptPath
	}
	return "qsub -terse " + scriptPath
}

var (
	slurmJobID = regexp.MustCompile(`(\d+)`)
)

func (b *GridBackend) Submit(_ context.Context, _ *MapItem, resolved map[string]any, taskName string) (string, string, error) {
	cli, err := b.dial()
	if err != nil {
		return "", "", err
	}
	defer cli.Close()

	run, err := renderedScript(b.App, resolved)
	if err != nil {
		return "", "", err
	}

	script := b.WorkDir + "/" + taskName + ".sh"
	body := "#!/bin/sh\n" + run + "\n"
	writeCmd := fmt.Sprintf("cat > %s <<'GFSCRIPT'\n%sGFSCRIPT\nchmod +x %s", script, body, script)
	if _, err := b.exec(cli, writeCmd); err != nil {
		return "", "", err
	}

	out, err := b.exec(cli, b.submitCommand(script))
	if err != nil {
		return "", "", err
	}
	jobID := strings.TrimSpace(slurmJobID.FindString(out))
	if jobID == "" {
		return "", "", fmt.Errorf("could not parse job id from scheduler output: %q", out)
	}
	return jobID, "ssh://" + b.SSH.Host + b.WorkDir + "/" + taskName, nil
}

func (b *GridBackend) statusCommand(jobID string) string {
	if b.Scheduler == SchedulerSlurm {
		return "squeue -h -j " + jobID + " -o %t"
	}
	return "qstat -j " + jobID
}

func (b *GridBackend) Poll(_ context.Context, item *MapItem) (status.MapItemStatus, string, error) {
	attempt := item.CurrentAttempt()
	if attempt == nil {
		return status.MapItemUnknown, "", nil
	}

	cli, err := b.dial()
	if err != nil {
		return status.MapItemUnknown, "", nil
	}
	defer cli.Close()

	out, err := b.exec(cli, b.statusCommand(attempt.JobID))
	if err != nil {
		// A scheduler that no longer knows the job ID has finished it —
		// both qstat and squeue exit non-zero once a job has left the queue.
		return status.MapItemFinished, "", nil
	}
	return b.parseStatus(out), "", nil
}

func (b *GridBackend) parseStatus(out string) status.MapItemStatus {
	out = strings.ToUpper(strings.TrimSpace(out))
	switch {
	case out == "":
		return status.MapItemFinished
	case strings.Contains(out, "R"):
		return status.MapItemRunning
	case strings.Contains(out, "PD"), strings.Contains(out, "QW"):
		return status.MapItemQueued
	default:
		return status.MapItemUnknown
	}
}

func (b *GridBackend) cancelCommand(jobID string) string {
	if b.Scheduler == SchedulerSlurm {
		return "scancel " + jobID
	}
	return "qdel " + jobID
}

func (b *GridBackend) Cancel(_ context.Context, item *MapItem) error {
	attempt := item.CurrentAttempt()
	if attempt == nil {
		return nil
	}
	cli, err := b.dial()
	if err != nil {
		return err
	}
	defer cli.Close()
	_, err = b.exec(cli, b.cancelCommand(attempt.JobID))
	return err
}
