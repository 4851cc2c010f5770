package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("rig", "", "")
	cmd.Flags().String("tick-period", "", "")
	cmd.Flags().String("catch-up", "", "")
	cmd.Flags().String("log-file", "", "")
	return cmd
}

func TestDefaults(t *testing.T) {
	g := NewWithT(t)

	g.Expect(InitConfiguration(newCommand(), "")).To(Succeed())
	g.Expect(GetTickPeriod()).To(Equal(50 * time.Millisecond))
	g.Expect(GetSaveInterval()).To(Equal(time.Second))
	g.Expect(GetProfileSheet()).To(Equal("Ablauf"))
	g.Expect(GetProfileStartRow()).To(Equal(4))
	g.Expect(GetHttpAddress()).To(Equal(":8080"))
	g.Expect(GetCatchUpPolicy()).To(BeEmpty())
	g.Expect(GetLogRetryConfig()).To(Equal(RetryConfig{InitialInterval: time.Second, Multiplier: 2, MaxInterval: 30 * time.Second}))

	// the generated id is kept
	id := GetRigID()
	g.Expect(id).ToNot(BeEmpty())
	g.Expect(GetRigID()).To(Equal(id))
	g.Expect(GetMqttTopic()).To(Equal("rigctl/" + id + "/status"))
}

func TestFlagsAndEnvironment(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("RIGCTL_SAVE_INTERVAL", "2s")
	t.Setenv("RIGCTL_CATCH_UP", "catch-up")
	t.Setenv("RIGCTL_RIG_ID", "rig-7")

	cmd := newCommand()
	g.Expect(cmd.Flags().Set("rig", "/etc/rigctl/rig.yaml")).To(Succeed())
	g.Expect(cmd.Flags().Set("tick-period", "100ms")).To(Succeed())

	g.Expect(InitConfiguration(cmd, "")).To(Succeed())
	g.Expect(GetRigFile()).To(Equal("/etc/rigctl/rig.yaml"))
	g.Expect(GetTickPeriod()).To(Equal(100 * time.Millisecond))
	g.Expect(GetSaveInterval()).To(Equal(2 * time.Second))
	g.Expect(GetRigID()).To(Equal("rig-7"))

	// environment values are copied to unset flags
	catchUp, err := cmd.Flags().GetString("catch-up")
	g.Expect(err).To(BeNil())
	g.Expect(catchUp).To(Equal("catch-up"))
}

func TestConfigFile(t *testing.T) {
	g := NewWithT(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "rigctl.yaml")
	g.Expect(os.WriteFile(file, []byte("log_file: /data/run.log\nsave_interval: 0s\nstart_row: 5\n"), 0o600)).To(Succeed())

	g.Expect(InitConfiguration(newCommand(), file)).To(Succeed())
	g.Expect(GetLogFile()).To(Equal("/data/run.log"))
	g.Expect(GetProfileStartRow()).To(Equal(5))
	// an invalid duration falls back to the default
	g.Expect(GetSaveInterval()).To(Equal(time.Second))

	g.Expect(InitConfiguration(newCommand(), filepath.Join(dir, "missing.yaml"))).ToNot(Succeed())
}
