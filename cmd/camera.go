package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
)

var cameraLang string

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Start the live camera translation window on the OCR server",
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, err := targetLanguage(cameraLang, cfg.CameraLang, "Camera language", isTerminal(cmd.InOrStdin()))
		if err != nil {
			return err
		}

		if err := camera.New(cfg.Camera()).Start(cmd.Context(), lang); err != nil {
			printNotice("Error starting camera: " + err.Error())
			return err
		}
		printNotice(camera.StartedMessage)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cameraCmd)
	cameraCmd.Flags().StringVarP(&cameraLang, "lang", "l", "", "Language code or name for the live session")
}
