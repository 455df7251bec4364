package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cursory/internal/course"
)

// newCoursesCommand はcoursesコマンドを生成する。
func newCoursesCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "courses",
		Aliases: []string{"course"},
		Short:   "コースを管理する",
	}
	cmd.AddCommand(
		newCourseListCommand(st),
		newCourseGetCommand(st),
		newCourseCreateCommand(st),
		newCourseUpdateCommand(st),
		newCourseDeleteCommand(st),
		newCourseGenerateCommand(st),
	)
	return cmd
}

func newCourseListCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "自分のコースを一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			courses, err := st.app.courses.List(cmd.Context())
			if err != nil {
				return err
			}
			return st.print(courses)
		},
	}
}

func newCourseGetCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <courseId>",
		Short: "モジュールとリソースを含むコースを表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			c, err := st.app.courses.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return st.print(c)
		},
	}
}

func newCourseCreateCommand(st *cliState) *cobra.Command {
	var (
		data       course.CreateCourseData
		visibility string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "コースを作成する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			data.Visibility = course.Visibility(strings.ToUpper(visibility))
			if data.Slug == "" {
				data.Slug = course.Slugify(data.Title)
			}
			c, err := st.app.courses.Create(cmd.Context(), data)
			if err != nil {
				return err
			}
			return st.print(c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Title, "title", "", "タイトル")
	f.StringVar(&data.Description, "description", "", "説明")
	f.StringVar(&data.Slug, "slug", "", "スラッグ（省略時はタイトルから生成）")
	f.StringVar(&visibility, "visibility", string(course.VisibilityPrivate), "公開範囲（PUBLIC, PRIVATE）")
	f.StringSliceVar(&data.Tags, "tag", nil, "タグ（複数指定可）")
	return cmd
}

func newCourseUpdateCommand(st *cliState) *cobra.Command {
	var (
		title, description, slug, visibility string
		tags                                 []string
	)
	cmd := &cobra.Command{
		Use:   "update <courseId>",
		Short: "指定したフィールドだけコースを更新する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			var data course.UpdateCourseData
			f := cmd.Flags()
			if f.Changed("title") {
				data.Title = &title
			}
			if f.Changed("description") {
				data.Description = &description
			}
			if f.Changed("slug") {
				data.Slug = &slug
			}
			if f.Changed("visibility") {
				v := course.Visibility(strings.ToUpper(visibility))
				data.Visibility = &v
			}
			if f.Changed("tag") {
				data.Tags = &tags
			}
			c, err := st.app.courses.Update(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return st.print(c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "タイトル")
	f.StringVar(&description, "description", "", "説明")
	f.StringVar(&slug, "slug", "", "スラッグ")
	f.StringVar(&visibility, "visibility", "", "公開範囲（PUBLIC, PRIVATE）")
	f.StringSliceVar(&tags, "tag", nil, "タグ（指定すると全て置き換える）")
	return cmd
}

func newCourseDeleteCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <courseId>",
		Short: "コースをモジュールとリソースごと削除する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			if err := st.app.courses.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return st.print(map[string]string{"deleted": args[0]})
		},
	}
}

func newCourseGenerateCommand(st *cliState) *cobra.Command {
	var (
		data   course.GenerateCourseData
		create bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "AIでコースの下書きを生成する",
		Long: `AIでコースの下書きを生成して表示します。
--create を指定すると、生成した下書きでそのままコースを作成します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			data.Difficulty = strings.ToLower(data.Difficulty)
			draft, err := st.app.courses.Generate(cmd.Context(), data)
			if err != nil {
				return err
			}
			if !create {
				return st.print(draft)
			}
			c, err := st.app.courses.Create(cmd.Context(), *draft)
			if err != nil {
				return err
			}
			return st.print(c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Description, "description", "", "コースの概要")
	f.StringVar(&data.Objective, "objective", "", "到達目標")
	f.StringVar(&data.Difficulty, "difficulty", "beginner", "難易度（beginner, intermediate, advanced）")
	f.BoolVar(&create, "create", false, "生成した下書きでコースを作成する")
	return cmd
}
