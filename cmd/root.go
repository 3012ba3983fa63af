package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gym-gate",
	Short: "Gym membership administration with biometric access control",
	Long: `Gym Gate is a membership administration tool for a small gym.
It keeps the member register, payments and attendance in PostgreSQL and
controls the entrance gate through face recognition: members enroll a face
capture once and are identified at the door in a fraction of a second.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
