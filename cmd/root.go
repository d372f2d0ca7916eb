/*

Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/rebuild/cmd/config"
	"bennypowers.dev/rebuild/internal/logging"
	"bennypowers.dev/rebuild/watch"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Watch, mirror, transform, and supervise",
	Long: `Mirrors one or more watched source trees into an output directory,
optionally transforming matching files, while resolving which vendored
node_modules packages actually participate in the build. When fork or spawn
commands are configured, keeps those children alive across source changes
and crashes with debounced, serialized restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}
		logging.SetDebugEnabled(cfg.Debug)

		// runtime failures past this point are not usage errors
		cmd.SilenceUsage = true

		session, err := watch.NewSession(watch.SessionOptions{Config: cfg})
		if err != nil {
			return err
		}
		return session.Run()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func configFromViper() *config.RebuildConfig {
	return &config.RebuildConfig{
		ProjectDir: viper.GetString("projectDir"),
		ConfigFile: viper.GetString("configFile"),
		Watch:      viper.GetStringSlice("watch"),
		Output:     viper.GetString("output"),
		Transform:  viper.GetStringSlice("transform"),
		Using:      viper.GetString("using"),
		Fork:       viper.GetStringSlice("fork"),
		Spawn:      viper.GetStringSlice("spawn"),
		Cleanup:    viper.GetString("cleanup"),
		Kill:       viper.GetIntSlice("kill"),
		Wait:       viper.GetInt("wait"),
		Debug:      viper.GetBool("debug"),
	}
}

// expandPath expands ~, handles relative and absolute paths
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Abs(path)
}

func initConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		pterm.Fatal.Printf("Unable to get current working directory: %v", err)
	}
	viper.Set("projectDir", cwd)

	cfgFile := viper.GetString("configFile")
	if cfgFile != "" {
		cfgFile, err = expandPath(cfgFile)
		cobra.CheckErr(err)
	} else {
		cfgFile, err = expandPath(filepath.Join(cwd, ".config", "rebuild.yaml"))
		cobra.CheckErr(err)
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err == nil {
		pterm.Debug.Println("Using config file: ", cfgFile)
	}
	viper.Set("configFile", cfgFile)

	viper.AutomaticEnv()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringArrayP("watch", "w", nil, "Source root to watch. Repeatable; at least one required.")
	rootCmd.Flags().StringP("output", "o", "", "Output root. Deleted and recreated at startup.")
	rootCmd.Flags().StringArrayP("transform", "t", nil, "Glob selecting files passed through the transformer. Repeatable.")
	rootCmd.Flags().StringP("using", "u", "", "Transformer command, or \"esbuild\" for the builtin.")
	rootCmd.Flags().StringArrayP("fork", "f", nil, "Command to run as a fork-style child (IPC attached). Repeatable.")
	rootCmd.Flags().StringArrayP("spawn", "s", nil, "Command to run as a spawn-style child. Repeatable.")
	rootCmd.Flags().StringP("cleanup", "c", "", "Cleanup command invoked per child on restart and shutdown.")
	rootCmd.Flags().IntSliceP("kill", "k", nil, "TCP port to kill on final shutdown. Repeatable.")
	rootCmd.Flags().Int("wait", 3000, "Force-kill deadline in milliseconds.")
	rootCmd.Flags().BoolP("debug", "d", false, "Verbose vendor-path logging.")
	rootCmd.PersistentFlags().String("config", "", "config file (default is $CWD/.config/rebuild.yaml)")

	viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("transform", rootCmd.Flags().Lookup("transform"))
	viper.BindPFlag("using", rootCmd.Flags().Lookup("using"))
	viper.BindPFlag("fork", rootCmd.Flags().Lookup("fork"))
	viper.BindPFlag("spawn", rootCmd.Flags().Lookup("spawn"))
	viper.BindPFlag("cleanup", rootCmd.Flags().Lookup("cleanup"))
	viper.BindPFlag("kill", rootCmd.Flags().Lookup("kill"))
	viper.BindPFlag("wait", rootCmd.Flags().Lookup("wait"))
	viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	viper.BindPFlag("configFile", rootCmd.PersistentFlags().Lookup("config"))
}
