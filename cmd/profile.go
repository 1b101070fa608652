package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/vtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProfileUpdate changes full name and/or email.
func (r *Runner) ProfileUpdate(ctx context.Context, cmd *cli.Command) error {
	user, err := r.videotube.UpdateAccount(ctx, cmd.String("fullname"), cmd.String("email"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated @%s (%s, %s)\n", user.Username, user.FullName, user.Email)
}

// ProfileAvatar uploads a new avatar image.
func (r *Runner) ProfileAvatar(ctx context.Context, cmd *cli.Command) error {
	path, err := imageArg(cmd)
	if err != nil {
		return err
	}

	user, err := r.videotube.UpdateAvatar(ctx, path)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Avatar updated: %s\n", user.Avatar)
}

// ProfileCover uploads a new cover image.
func (r *Runner) ProfileCover(ctx context.Context, cmd *cli.Command) error {
	path, err := imageArg(cmd)
	if err != nil {
		return err
	}

	user, err := r.videotube.UpdateCoverImage(ctx, path)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Cover image updated: %s\n", user.CoverImage)
}

// ProfilePassword changes the account password.
func (r *Runner) ProfilePassword(ctx context.Context, cmd *cli.Command) error {
	oldPassword, newPassword := cmd.String("old"), cmd.String("new")
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", shared.ErrInvalidArgument)
	}

	if err := r.videotube.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}
	return r.writePlain("✓ Password changed\n")
}

func imageArg(cmd *cli.Command) (string, error) {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return "", err
	}
	if err := shared.VerifyFile(path); err != nil {
		return "", err
	}
	return path, nil
}
