package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/l-messias/ragrelay/cmd/ragrelay/init"
	"github.com/l-messias/ragrelay/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("accepts zero arguments", func() {
		cmd := initcmder.NewInitCmd()
		err := cmd.Args(cmd, []string{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		err := cmd.Args(cmd, []string{"extra"})
		Expect(err).To(HaveOccurred())
	})

	It("has an --upstream flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("upstream")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ragrelay-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".ragrelay", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg := &config.Config{}
		Expect(toml.Unmarshal(data, cfg)).To(Succeed())
		return cfg
	}

	It("creates a .ragrelay directory in the current directory", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		err := cmd.Execute()
		Expect(err).NotTo(HaveOccurred())

		info, err := os.Stat(filepath.Join(tmpDir, ".ragrelay"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("creates a config.toml with default values", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		Expect(cmd.Execute()).To(Succeed())

		cfg := readConfig()
		defaults := config.NewDefaultConfig()
		Expect(cfg.Relay.Listen).To(Equal(defaults.Relay.Listen))
		Expect(cfg.RAG.TopN).To(Equal(defaults.RAG.TopN))
		Expect(cfg.Client.RelayTarget).To(Equal(defaults.Client.RelayTarget))
	})

	It("writes the upstream URL when given", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"--upstream", "https://rag.example.com/api/rag"})
		cmd.SetOut(&bytes.Buffer{})
		Expect(cmd.Execute()).To(Succeed())

		Expect(readConfig().Upstream.URL).To(Equal("https://rag.example.com/api/rag"))
	})

	It("keeps an existing config.toml", func() {
		first := initcmder.NewInitCmd()
		first.SetArgs([]string{"--upstream", "https://rag.example.com/api/rag"})
		first.SetOut(&bytes.Buffer{})
		Expect(first.Execute()).To(Succeed())

		var out bytes.Buffer
		second := initcmder.NewInitCmd()
		second.SetArgs([]string{})
		second.SetOut(&out)
		Expect(second.Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Already initialized"))
		Expect(readConfig().Upstream.URL).To(Equal("https://rag.example.com/api/rag"))
	})
})
